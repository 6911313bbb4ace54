// Package nmapout parses nmap normal-format (-oN) text output. It extracts
// open tcp service lines, identifies web-service ports, and detects the
// scan completion marker.
package nmapout

import (
	"regexp"
	"strconv"
	"strings"
)

// doneMarker is the literal text nmap appends when a scan finishes.
const doneMarker = "Nmap done"

var (
	// tcpLineRe matches any port/tcp service line, open or not.
	tcpLineRe = regexp.MustCompile(`(?m)^(\d{1,5})/tcp\s+(\S+)\s+(\S+)`)

	// webLineRe matches open tcp services whose name contains "http" as a
	// standalone token. The word boundary deliberately excludes plain
	// "https": the dispatcher builds http:// URLs, so TLS-only ports are
	// not candidates. "http", "http-alt", "ssl/http" and "http-proxy"
	// all match.
	webLineRe = regexp.MustCompile(`(?mi)^(\d{1,5})/tcp\s+open\s+.*\bhttp\b`)
)

// Service is one port/tcp line from the report.
type Service struct {
	Port  int
	State string
	Name  string
}

// Report is the outcome of parsing one snapshot of the output file.
type Report struct {
	// Services lists every port/tcp line in file order.
	Services []Service

	// WebPorts lists ports whose open service matched the web policy, in
	// file order. Repeated matches for the same port are preserved; the
	// upstream pipeline never deduplicated and dispatch order depends on
	// it.
	WebPorts []int

	// Done reports whether the completion marker was present.
	Done bool
}

// HasWebPorts reports whether any web service was extracted.
func (r Report) HasWebPorts() bool {
	return len(r.WebPorts) > 0
}

// Parse extracts services, web ports, and the completion flag from -oN
// content. It holds no state: the same content always yields the same
// report.
func Parse(content string) Report {
	report := Report{
		Done: strings.Contains(content, doneMarker),
	}

	for _, m := range tcpLineRe.FindAllStringSubmatch(content, -1) {
		port, err := strconv.Atoi(m[1])
		if err != nil || port > 65535 {
			continue
		}
		report.Services = append(report.Services, Service{
			Port:  port,
			State: m[2],
			Name:  m[3],
		})
	}

	for _, m := range webLineRe.FindAllStringSubmatch(content, -1) {
		port, err := strconv.Atoi(m[1])
		if err != nil || port > 65535 {
			continue
		}
		report.WebPorts = append(report.WebPorts, port)
	}

	return report
}
