package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FollowerConfig configures the ownership follower (component E).
// Grounded on original_source/otel_watcher.py's module-level env reads
// (DNS_RECORD, DR_IP/MY_IP, OTEL_CHECK_INTERVAL, OTEL_COMMAND, DNS_SERVER).
type FollowerConfig struct {
	DNSRecord string
	DNSServer string
	MyIP      string

	CheckInterval int

	SideEffect string // "subprocess", "container", "deployment"

	// subprocess side effect
	Command string

	// container side effect
	ContainerName string

	// deployment side effect
	DeploymentName      string
	DeploymentNamespace string
	ActiveReplicas      int
	IdleReplicas        int

	StateFile   string
	MetricsAddr string
}

func LoadFollowerConfig() FollowerConfig {
	v := newViper()
	// An explicitly empty variable (e.g. OTEL_COMMAND="") overrides its
	// default instead of falling back to it, so Validate can reject it.
	v.AllowEmptyEnv(true)

	v.SetDefault("DNS_RECORD", "syslog.ast.example.local")
	v.SetDefault("OTEL_CHECK_INTERVAL", 15)
	v.SetDefault("OTEL_COMMAND", "otelcol-contrib --config /etc/otel/config.yaml")
	v.SetDefault("FOLLOWER_SIDE_EFFECT", "subprocess")
	v.SetDefault("FOLLOWER_STATE_FILE", "/state/follower-state.json")
	v.SetDefault("DEPLOYMENT_ACTIVE_REPLICAS", 1)
	v.SetDefault("DEPLOYMENT_IDLE_REPLICAS", 0)

	myIP := v.GetString("DR_IP")
	if myIP == "" {
		myIP = v.GetString("MY_IP")
	}

	return FollowerConfig{
		DNSRecord:           v.GetString("DNS_RECORD"),
		DNSServer:           v.GetString("DNS_SERVER"),
		MyIP:                myIP,
		CheckInterval:       v.GetInt("OTEL_CHECK_INTERVAL"),
		SideEffect:          v.GetString("FOLLOWER_SIDE_EFFECT"),
		Command:             v.GetString("OTEL_COMMAND"),
		ContainerName:       v.GetString("FOLLOWER_CONTAINER_NAME"),
		DeploymentName:      v.GetString("FOLLOWER_DEPLOYMENT_NAME"),
		DeploymentNamespace: v.GetString("FOLLOWER_DEPLOYMENT_NAMESPACE"),
		ActiveReplicas:      v.GetInt("DEPLOYMENT_ACTIVE_REPLICAS"),
		IdleReplicas:        v.GetInt("DEPLOYMENT_IDLE_REPLICAS"),
		StateFile:           v.GetString("FOLLOWER_STATE_FILE"),
		MetricsAddr:         v.GetString("METRICS_ADDR"),
	}
}

func (c FollowerConfig) Validate() error {
	var errs *multierror.Error

	errs = requireNonEmpty(errs, c.DNSRecord, "DNS_RECORD")
	errs = requireNonEmpty(errs, c.MyIP, "DR_IP or MY_IP")

	switch c.SideEffect {
	case "subprocess":
		errs = requireNonEmpty(errs, c.Command, "OTEL_COMMAND")
	case "container":
		errs = requireNonEmpty(errs, c.ContainerName, "FOLLOWER_CONTAINER_NAME")
	case "deployment":
		errs = requireNonEmpty(errs, c.DeploymentName, "FOLLOWER_DEPLOYMENT_NAME")
		errs = requireNonEmpty(errs, c.DeploymentNamespace, "FOLLOWER_DEPLOYMENT_NAMESPACE")
	default:
		errs = multierror.Append(errs, fmt.Errorf("invalid FOLLOWER_SIDE_EFFECT: %q", c.SideEffect))
	}

	if errs != nil {
		return &Error{errs}
	}
	return nil
}
