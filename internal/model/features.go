package model

import (
	"fmt"
)

// FeatureVector is a fixed-shape description of one observed network flow,
// following the KDD-style connection feature set produced by the traffic
// probes. It is immutable once built and only persisted as the opaque
// packet_data payload of an alert.
type FeatureVector struct {
	Duration      float64 `json:"duration"`
	ProtocolType  string  `json:"protocol_type"`
	Service       string  `json:"service"`
	Flag          string  `json:"flag"`
	SrcBytes      float64 `json:"src_bytes"`
	DstBytes      float64 `json:"dst_bytes"`
	Land          int     `json:"land"`
	WrongFragment int     `json:"wrong_fragment"`
	Urgent        int     `json:"urgent"`
	Hot           int     `json:"hot"`

	NumFailedLogins  int `json:"num_failed_logins"`
	LoggedIn         int `json:"logged_in"`
	NumCompromised   int `json:"num_compromised"`
	RootShell        int `json:"root_shell"`
	SuAttempted      int `json:"su_attempted"`
	NumRoot          int `json:"num_root"`
	NumFileCreations int `json:"num_file_creations"`
	NumShells        int `json:"num_shells"`
	NumAccessFiles   int `json:"num_access_files"`
	NumOutboundCmds  int `json:"num_outbound_cmds"`
	IsHostLogin      int `json:"is_host_login"`
	IsGuestLogin     int `json:"is_guest_login"`

	Count           float64 `json:"count"`
	SrvCount        float64 `json:"srv_count"`
	SerrorRate      float64 `json:"serror_rate"`
	SrvSerrorRate   float64 `json:"srv_serror_rate"`
	RerrorRate      float64 `json:"rerror_rate"`
	SrvRerrorRate   float64 `json:"srv_rerror_rate"`
	SameSrvRate     float64 `json:"same_srv_rate"`
	DiffSrvRate     float64 `json:"diff_srv_rate"`
	SrvDiffHostRate float64 `json:"srv_diff_host_rate"`

	DstHostCount           float64 `json:"dst_host_count"`
	DstHostSrvCount        float64 `json:"dst_host_srv_count"`
	DstHostSameSrvRate     float64 `json:"dst_host_same_srv_rate"`
	DstHostDiffSrvRate     float64 `json:"dst_host_diff_srv_rate"`
	DstHostSameSrcPortRate float64 `json:"dst_host_same_src_port_rate"`
	DstHostSrvDiffHostRate float64 `json:"dst_host_srv_diff_host_rate"`
	DstHostSerrorRate      float64 `json:"dst_host_serror_rate"`
	DstHostSrvSerrorRate   float64 `json:"dst_host_srv_serror_rate"`
	DstHostRerrorRate      float64 `json:"dst_host_rerror_rate"`
	DstHostSrvRerrorRate   float64 `json:"dst_host_srv_rerror_rate"`
}

var validProtocols = map[string]bool{
	"tcp":  true,
	"udp":  true,
	"icmp": true,
}

var validFlags = map[string]bool{
	"SF":     true,
	"S0":     true,
	"S1":     true,
	"S2":     true,
	"S3":     true,
	"REJ":    true,
	"RSTO":   true,
	"RSTR":   true,
	"RSTOS0": true,
	"SH":     true,
	"OTH":    true,
}

// Validate checks that the vector is fully populated and in range. The
// classifier refuses vectors that fail here rather than guessing at
// missing fields.
func (f *FeatureVector) Validate() error {
	if !validProtocols[f.ProtocolType] {
		return fmt.Errorf("unknown protocol_type %q", f.ProtocolType)
	}
	if f.Service == "" {
		return fmt.Errorf("service is required")
	}
	if !validFlags[f.Flag] {
		return fmt.Errorf("unknown flag %q", f.Flag)
	}

	counts := map[string]float64{
		"duration":           f.Duration,
		"src_bytes":          f.SrcBytes,
		"dst_bytes":          f.DstBytes,
		"count":              f.Count,
		"srv_count":          f.SrvCount,
		"dst_host_count":     f.DstHostCount,
		"dst_host_srv_count": f.DstHostSrvCount,
	}
	for name, v := range counts {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, v)
		}
	}

	intCounts := map[string]int{
		"wrong_fragment":     f.WrongFragment,
		"urgent":             f.Urgent,
		"hot":                f.Hot,
		"num_failed_logins":  f.NumFailedLogins,
		"num_compromised":    f.NumCompromised,
		"num_root":           f.NumRoot,
		"num_file_creations": f.NumFileCreations,
		"num_shells":         f.NumShells,
		"num_access_files":   f.NumAccessFiles,
		"num_outbound_cmds":  f.NumOutboundCmds,
	}
	for name, v := range intCounts {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}

	binaries := map[string]int{
		"land":           f.Land,
		"logged_in":      f.LoggedIn,
		"root_shell":     f.RootShell,
		"su_attempted":   f.SuAttempted,
		"is_host_login":  f.IsHostLogin,
		"is_guest_login": f.IsGuestLogin,
	}
	for name, v := range binaries {
		if v != 0 && v != 1 {
			return fmt.Errorf("%s must be 0 or 1, got %d", name, v)
		}
	}

	rates := map[string]float64{
		"serror_rate":                 f.SerrorRate,
		"srv_serror_rate":             f.SrvSerrorRate,
		"rerror_rate":                 f.RerrorRate,
		"srv_rerror_rate":             f.SrvRerrorRate,
		"same_srv_rate":               f.SameSrvRate,
		"diff_srv_rate":               f.DiffSrvRate,
		"srv_diff_host_rate":          f.SrvDiffHostRate,
		"dst_host_same_srv_rate":      f.DstHostSameSrvRate,
		"dst_host_diff_srv_rate":      f.DstHostDiffSrvRate,
		"dst_host_same_src_port_rate": f.DstHostSameSrcPortRate,
		"dst_host_srv_diff_host_rate": f.DstHostSrvDiffHostRate,
		"dst_host_serror_rate":        f.DstHostSerrorRate,
		"dst_host_srv_serror_rate":    f.DstHostSrvSerrorRate,
		"dst_host_rerror_rate":        f.DstHostRerrorRate,
		"dst_host_srv_rerror_rate":    f.DstHostSrvRerrorRate,
	}
	for name, v := range rates {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}

	return nil
}
