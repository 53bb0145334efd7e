package parser

import (
	"net"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/pkg/flow"
	"github.com/activecm/flowguard/util"
)

// Filter decides which flows read from Zeek logs are classified
type Filter struct {
	internal       []*net.IPNet
	alwaysIncluded []*net.IPNet
	neverIncluded  []*net.IPNet
}

// NewFilter creates a filter from the parsed filtering configuration
func NewFilter(conf config.FilteringRunningCfg) *Filter {
	return &Filter{
		internal:       conf.InternalSubnets,
		alwaysIncluded: conf.AlwaysIncluded,
		neverIncluded:  conf.NeverIncluded,
	}
}

// Skip reports whether rec should be left out. Records without parsable
// addresses are always kept.
func (f *Filter) Skip(rec *flow.Record) bool {
	if f == nil || rec == nil {
		return false
	}
	srcIP := net.ParseIP(rec.Source)
	dstIP := net.ParseIP(rec.Destination)
	if srcIP == nil || dstIP == nil {
		return false
	}
	return f.filterConnPair(srcIP, dstIP)
}

func (f *Filter) filterConnPair(srcIP net.IP, dstIP net.IP) bool {
	// check if on always included list
	isSrcIncluded := util.ContainsIP(f.alwaysIncluded, srcIP)
	isDstIncluded := util.ContainsIP(f.alwaysIncluded, dstIP)

	// AlwaysInclude wins over NeverInclude, also when src and dst conflict
	if isSrcIncluded || isDstIncluded {
		return false
	}

	// check if on never included list
	if util.ContainsIP(f.neverIncluded, srcIP) || util.ContainsIP(f.neverIncluded, dstIP) {
		return true
	}

	// without internal subnets every remaining pair is kept
	if len(f.internal) == 0 {
		return false
	}

	// only flows crossing the network boundary are classified
	isSrcInternal := util.ContainsIP(f.internal, srcIP)
	isDstInternal := util.ContainsIP(f.internal, dstIP)
	return isSrcInternal == isDstInternal
}
