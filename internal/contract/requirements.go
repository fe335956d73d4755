package contract

import (
	"strconv"
	"strings"
)

// DefaultServiceType is assumed when an announcement does not name one.
const DefaultServiceType = "k8s_deployment"

// Requirements describe the workload a consumer wants federated. On the
// ledger they travel as the original contract's "key=value; " encoded string
// so that announcements stay readable by existing tooling; zero values are
// encoded as the literal None.
type Requirements struct {
	ServiceType   string  `json:"service_type"`
	BandwidthGbps float64 `json:"bandwidth_gbps,omitempty"`
	RTTLatencyMs  int     `json:"rtt_latency_ms,omitempty"`
	ComputeCPUs   int     `json:"compute_cpus,omitempty"`
	ComputeRAMGB  int     `json:"compute_ram_gb,omitempty"`
}

// Encode renders the requirements in the ledger wire form. Every field is
// present, absent values as "None", keys joined by "; ".
func (r Requirements) Encode() string {
	st := r.ServiceType
	if st == "" {
		st = DefaultServiceType
	}
	fields := []string{
		"service_type=" + st,
		"bandwidth_gbps=" + encodeFloat(r.BandwidthGbps),
		"rtt_latency_ms=" + encodeInt(r.RTTLatencyMs),
		"compute_cpus=" + encodeInt(r.ComputeCPUs),
		"compute_ram_gb=" + encodeInt(r.ComputeRAMGB),
	}
	return strings.Join(fields, "; ")
}

// ParseRequirements is the inverse of Encode. Unknown keys are ignored,
// malformed numbers read as absent.
func ParseRequirements(s string) Requirements {
	var r Requirements
	for _, entry := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" || strings.EqualFold(value, "none") {
			continue
		}
		switch strings.TrimSpace(key) {
		case "service_type":
			r.ServiceType = value
		case "bandwidth_gbps":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				r.BandwidthGbps = f
			}
		case "rtt_latency_ms":
			if n, err := strconv.Atoi(value); err == nil {
				r.RTTLatencyMs = n
			}
		case "compute_cpus":
			if n, err := strconv.Atoi(value); err == nil {
				r.ComputeCPUs = n
			}
		case "compute_ram_gb":
			if n, err := strconv.Atoi(value); err == nil {
				r.ComputeRAMGB = n
			}
		}
	}
	return r
}

func encodeFloat(v float64) string {
	if v == 0 {
		return "None"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func encodeInt(v int) string {
	if v == 0 {
		return "None"
	}
	return strconv.Itoa(v)
}
