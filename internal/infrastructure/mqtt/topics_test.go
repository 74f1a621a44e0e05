package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", topics.Event("port_forward", "pf-22"), "graygate/event/port_forward/pf-22"},
		{"state", topics.State("wlan", "wl-guest"), "graygate/state/wlan/wl-guest"},
		{"command", topics.Command("traffic_route", "tr-vpn"), "graygate/command/traffic_route/tr-vpn"},
		{"all commands", topics.AllCommands(), "graygate/command/+/+"},
		{"all events", topics.AllEvents(), "graygate/event/+/+"},
		{"system status", topics.SystemStatus(), "graygate/system/status"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s topic = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
