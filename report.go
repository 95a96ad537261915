package portsweep

import (
	"math"
	"sort"
	"time"
)

// Finding is one open-port outcome in the report's findings list. Banner
// and Error are pointers so an absent banner serializes as null, never as
// an empty string.
type Finding struct {
	Host   string  `json:"host"`
	Port   int     `json:"port"`
	Open   bool    `json:"open"`
	Banner *string `json:"banner"`
	Error  *string `json:"error"`
}

// ConfigEcho echoes the run configuration into the report.
type ConfigEcho struct {
	TargetInput string  `json:"target_input"`
	PortsInput  string  `json:"ports_input"`
	TargetCount int     `json:"target_count"`
	PortsCount  int     `json:"ports_count"`
	TotalScans  int     `json:"total_scans"`
	Threads     int     `json:"threads"`
	Timeout     float64 `json:"timeout"`
	BannerGrab  bool    `json:"banner_grab"`
}

// Summary holds the aggregate counts. OpenPortsFound plus ClosedOrFiltered
// always equals ConfigEcho.TotalScans.
type Summary struct {
	OpenPortsFound   int `json:"open_ports_found"`
	ClosedOrFiltered int `json:"closed_or_filtered"`
}

// Report is the final, immutable result of a run. Findings contains only
// open-port outcomes, sorted by (host, port); closed and errored outcomes
// contribute to the summary counts only.
type Report struct {
	ScanStart       time.Time  `json:"scan_start"`
	ScanEnd         time.Time  `json:"scan_end"`
	DurationSeconds float64    `json:"duration_seconds"`
	Config          ConfigEcho `json:"config"`
	Summary         Summary    `json:"summary"`
	Findings        []Finding  `json:"findings"`
}

// RunInfo carries the timing and configuration metadata folded into a
// report alongside the outcomes.
type RunInfo struct {
	Start       time.Time
	End         time.Time
	TargetInput string
	PortsInput  string
	TargetCount int
	PortsCount  int
	Threads     int
	Timeout     float64
	BannerGrab  bool
}

// BuildReport folds the collected outcomes and run metadata into a Report.
// Pure aggregation: no I/O, side-effect free, independent of the completion
// order the outcomes arrived in.
func BuildReport(outcomes []Outcome, info RunInfo) *Report {
	findings := make([]Finding, 0)
	for _, out := range outcomes {
		if out.Kind != PortOpen {
			continue
		}
		f := Finding{Host: out.Host, Port: out.Port, Open: true}
		if out.Banner != "" {
			banner := out.Banner
			f.Banner = &banner
		}
		findings = append(findings, f)
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Host != findings[j].Host {
			return findings[i].Host < findings[j].Host
		}
		return findings[i].Port < findings[j].Port
	})

	total := info.TargetCount * info.PortsCount
	duration := info.End.Sub(info.Start).Seconds()

	return &Report{
		ScanStart:       info.Start.UTC(),
		ScanEnd:         info.End.UTC(),
		DurationSeconds: math.Round(duration*1000) / 1000,
		Config: ConfigEcho{
			TargetInput: info.TargetInput,
			PortsInput:  info.PortsInput,
			TargetCount: info.TargetCount,
			PortsCount:  info.PortsCount,
			TotalScans:  total,
			Threads:     info.Threads,
			Timeout:     info.Timeout,
			BannerGrab:  info.BannerGrab,
		},
		Summary: Summary{
			OpenPortsFound:   len(findings),
			ClosedOrFiltered: total - len(findings),
		},
		Findings: findings,
	}
}
