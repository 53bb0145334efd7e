package util

import (
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"
)

// TimeFormat stores a correctly formatted timestamp
const TimeFormat string = "2006-01-02-T15:04:05-0700"

// DayFormat stores a correctly formatted timestamp for the day
const DayFormat string = "2006-01-02"

// Exists returns true if file or directory exists
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// IsDir returns true if argument is a directory
func IsDir(path string) bool {
	file, err := os.Stat(path)
	if err != nil {
		return false
	}
	return file.IsDir()
}

// RoundTo rounds f half away from zero to the given number of decimal places
func RoundTo(f float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(f*shift) / shift
}

// Max returns the larger of two integers
func Max(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

// ParseSubnets parses CIDR ranges. Entries without a prefix length are read
// as a single host.
func ParseSubnets(subnets []string) ([]*net.IPNet, error) {
	var parsedSubnets []*net.IPNet

	for _, entry := range subnets {
		//try to parse out cidr range
		_, block, err := net.ParseCIDR(entry)

		//if there was an error, check if entry was an IP not a range
		if err != nil {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("%q is neither a CIDR range nor an IP address", entry)
			}
			if v4 := ip.To4(); v4 != nil {
				block = &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
			} else {
				block = &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
			}
		}

		// add cidr range to list
		parsedSubnets = append(parsedSubnets, block)
	}
	return parsedSubnets, nil
}

// ContainsIP checks if any of the subnets contains ip
func ContainsIP(subnets []*net.IPNet, ip net.IP) bool {
	for _, block := range subnets {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

const (
	day  = time.Minute * 60 * 24
	year = 365 * day
)

// FormatDuration properly prints a given time.Duration
// https://gist.github.com/harshavardhana/327e0577c4fed9211f65#gistcomment-2557682
func FormatDuration(d time.Duration) string {
	if d < day {
		return d.String()
	}

	var b strings.Builder

	if d >= year {
		years := d / year
		fmt.Fprintf(&b, "%dy", years)
		d -= years * year
	}

	days := d / day
	d -= days * day
	fmt.Fprintf(&b, "%dd%s", days, d)

	return b.String()
}
