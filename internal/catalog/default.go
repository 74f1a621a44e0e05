package catalog

import "github.com/nerrad567/gray-gate/internal/mirror"

// Type tags for the default mirrored types.
const (
	TypePortForward           mirror.TypeTag = "port_forward"
	TypeFirewallPolicy        mirror.TypeTag = "firewall_policy"
	TypeTrafficRule           mirror.TypeTag = "traffic_rule"
	TypeTrafficRoute          mirror.TypeTag = "traffic_route"
	TypeTrafficRouteKillSwtch mirror.TypeTag = "traffic_route_kill_switch"
	TypeWLAN                  mirror.TypeTag = "wlan"
	TypeDNSRecord             mirror.TypeTag = "dns_record"
	TypeStaticRoute           mirror.TypeTag = "static_route"
	TypeQoSRule               mirror.TypeTag = "qos_rule"
)

// Default returns the built-in spec table covering the controller's
// toggleable configuration objects. Significant fields are the ones a
// human would consider "the rule changed"; counters and bookkeeping
// fields on the same payloads are deliberately absent.
func Default() []Spec {
	return []Spec{
		{
			Tag:          TypePortForward,
			Path:         "portforward",
			Label:        "Port Forward",
			NameField:    "name",
			EnabledField: "enabled",
			SignificantFields: []string{
				"name", "dst_port", "fwd", "fwd_port", "proto", "src",
			},
		},
		{
			Tag:          TypeFirewallPolicy,
			Path:         "firewallpolicy",
			Label:        "Firewall Policy",
			NameField:    "name",
			EnabledField: "enabled",
			SignificantFields: []string{
				"name", "action", "protocol", "source", "destination", "schedule",
			},
		},
		{
			Tag:          TypeTrafficRule,
			Path:         "trafficrule",
			Label:        "Traffic Rule",
			NameField:    "description",
			EnabledField: "enabled",
			SignificantFields: []string{
				"description", "action", "matching_target", "target_devices",
			},
		},
		{
			Tag:          TypeTrafficRoute,
			Path:         "trafficroute",
			Label:        "Traffic Route",
			NameField:    "description",
			EnabledField: "enabled",
			SignificantFields: []string{
				"description", "interface", "matching_target", "domains", "target_devices",
			},
			Children: []ChildSpec{
				{
					Suffix: "kill_switch",
					Tag:    TypeTrafficRouteKillSwtch,
					Path:   []string{"kill_switch"},
					Label:  "Kill Switch",
				},
			},
		},
		{
			Tag:          TypeWLAN,
			Path:         "wlanconf",
			Label:        "Wireless Network",
			NameField:    "name",
			EnabledField: "enabled",
			SignificantFields: []string{
				"name", "security", "wpa_mode", "vlan", "hide_ssid",
			},
		},
		{
			Tag:          TypeDNSRecord,
			Path:         "staticdns",
			Label:        "DNS Record",
			NameField:    "key",
			EnabledField: "enabled",
			SignificantFields: []string{
				"key", "value", "record_type", "ttl",
			},
		},
		{
			Tag:          TypeStaticRoute,
			Path:         "routing",
			Label:        "Static Route",
			NameField:    "name",
			EnabledField: "enabled",
			SignificantFields: []string{
				"name", "static-route_network", "static-route_nexthop", "static-route_distance",
			},
		},
		{
			Tag:          TypeQoSRule,
			Path:         "qosrule",
			Label:        "QoS Rule",
			NameField:    "objectname",
			EnabledField: "enabled",
			SignificantFields: []string{
				"objectname", "download_limit_kbps", "upload_limit_kbps", "target_devices",
			},
		},
	}
}
