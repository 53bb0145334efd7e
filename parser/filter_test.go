package parser

import (
	"net"
	"testing"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/pkg/flow"
	"github.com/activecm/flowguard/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	src string
	dst string
	out bool
	msg string
}

func subnets(t *testing.T, entries ...string) []*net.IPNet {
	parsed, err := util.ParseSubnets(entries)
	require.NoError(t, err)
	return parsed
}

func TestFilterConnPairWithInternalSubnets(t *testing.T) {

	fsTest := NewFilter(config.FilteringRunningCfg{
		InternalSubnets: subnets(t, "10.0.0.0/8"),
		AlwaysIncluded:  subnets(t, "10.0.0.1/32", "10.0.0.3/32", "1.1.1.1/32", "1.1.1.3/32"),
		NeverIncluded:   subnets(t, "10.0.0.2/32", "10.0.0.3/32", "1.1.1.2/32", "1.1.1.3/32"),
	})

	// all permutations of being on internal, always, and never lists
	internal := "10.0.0.0"
	internalAlways := "10.0.0.1"
	internalNever := "10.0.0.2"
	internalAlwaysNever := "10.0.0.3"
	external := "1.1.1.0"
	externalAlways := "1.1.1.1"
	externalNever := "1.1.1.2"
	externalAlwaysNever := "1.1.1.3"

	testCases := []testCase{
		// internal to internal cases
		{internal, internal, true, "internal to internal should be filtered"},
		{internal, internalAlways, false, "AlwaysInclude should override internal to internal filter"},
		{internal, internalNever, true, "NeverInclude should override internal to internal filter"},
		// one IP on both opposing lists => always takes precedent
		{internal, internalAlwaysNever, false, "AlwaysInclude should override NeverInclude and internal to internal filter"},
		// src and dst on opposing lists => always takes precedent
		{internalAlways, internalNever, false, "AlwaysInclude should override NeverInclude and internal to internal filter"},

		// internal to external cases
		{internal, external, false, "internal to external should not be filtered"},
		{internal, externalAlways, false, "AlwaysInclude should not be filtered"},
		{internal, externalNever, true, "NeverInclude should override internal to external and be filtered"},
		{internal, externalAlwaysNever, false, "AlwaysInclude should override NeverInclude when one IP is in both"},
		{internalAlways, externalNever, false, "AlwaysInclude should override NeverInclude when src and dst conflict"},

		// external to internal cases
		{external, internal, false, "external to internal should not be filtered"},
		{external, internalAlways, false, "AlwaysInclude should not be filtered"},
		{external, internalNever, true, "NeverInclude should override internal to external and be filtered"},
		{external, internalAlwaysNever, false, "AlwaysInclude should override NeverInclude when one IP is in both"},
		{externalAlways, internalNever, false, "AlwaysInclude should override NeverInclude when src and dst conflict"},

		// external to external cases
		{external, external, true, "external to external should be filtered"},
		{external, externalAlways, false, "AlwaysInclude should override external to external filter"},
		{external, externalNever, true, "NeverInclude should override external to external filter"},
		{external, externalAlwaysNever, false, "AlwaysInclude should override NeverInclude and external to external filter"},
		{externalAlways, externalNever, false, "AlwaysInclude should override NeverInclude and external to external filter"},
	}

	for _, test := range testCases {
		output := fsTest.filterConnPair(net.ParseIP(test.src), net.ParseIP(test.dst))
		assert.Equal(t, test.out, output, test.msg)
	}
}

func TestFilterConnPairWithoutInternalSubnets(t *testing.T) {

	fsTest := NewFilter(config.FilteringRunningCfg{
		// purposely omitting internal subnet definition
		AlwaysIncluded: subnets(t, "10.0.0.1/32", "10.0.0.3/32", "1.1.1.1/32", "1.1.1.3/32"),
		NeverIncluded:  subnets(t, "10.0.0.4/32", "10.0.0.3/32", "1.1.1.2/32", "1.1.1.3/32"),
	})

	// "internal" here is merely by convention as with no InternalSubnets
	// defined, these should not be treated differently from external
	internal := "10.0.0.0"
	internalNever := "10.0.0.4"
	external := "1.1.1.0"

	// only including test cases which differ from when InternalSubnets is defined
	testCases := []testCase{
		{internal, internal, false, "internal to internal should not be filtered when InternalSubnets is empty"},
		// still apply the NeverInclude filter
		{internal, internalNever, true, "NeverInclude should be applied even when InternalSubnets empty"},
		{internal, external, false, "internal to external should not be filtered when InternalSubnets is empty"},
		{external, internal, false, "external to internal should not be filtered when InternalSubnets is empty"},
		{external, external, false, "external to external should not be filtered when InternalSubnets is empty"},
	}

	for _, test := range testCases {
		output := fsTest.filterConnPair(net.ParseIP(test.src), net.ParseIP(test.dst))
		assert.Equal(t, test.out, output, test.msg)
	}
}

func TestFilterSkip(t *testing.T) {
	f := NewFilter(config.FilteringRunningCfg{
		InternalSubnets: subnets(t, "10.0.0.0/8"),
	})

	assert.True(t, f.Skip(&flow.Record{Source: "10.0.0.1", Destination: "10.0.0.2"}))
	assert.False(t, f.Skip(&flow.Record{Source: "10.0.0.1", Destination: "8.8.8.8"}))
	assert.False(t, f.Skip(&flow.Record{Source: "10.0.0.1"}), "records without both addresses are kept")
	assert.False(t, f.Skip(nil))

	var none *Filter
	assert.False(t, none.Skip(&flow.Record{Source: "10.0.0.1", Destination: "10.0.0.2"}))
}
