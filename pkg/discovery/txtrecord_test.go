package discovery_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dpcontrol/dpcontrol-go/pkg/discovery"
)

func TestGatewayTXTRoundTrip(t *testing.T) {
	info := &discovery.GatewayInfo{
		DeviceID:   "bf0123456789abcdef",
		ProductKey: "keyjup3rfd9x",
		Version:    "1",
	}

	txt := discovery.EncodeGatewayTXT(info)
	strs := discovery.TXTRecordsToStrings(txt)
	decoded, err := discovery.DecodeGatewayTXT(discovery.StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("DecodeGatewayTXT() error = %v", err)
	}

	if decoded.DeviceID != info.DeviceID {
		t.Errorf("DeviceID = %q, want %q", decoded.DeviceID, info.DeviceID)
	}
	if decoded.ProductKey != info.ProductKey {
		t.Errorf("ProductKey = %q, want %q", decoded.ProductKey, info.ProductKey)
	}
	if decoded.Version != info.Version {
		t.Errorf("Version = %q, want %q", decoded.Version, info.Version)
	}
}

func TestEncodeGatewayTXTDefaults(t *testing.T) {
	txt := discovery.EncodeGatewayTXT(&discovery.GatewayInfo{DeviceID: "bf01"})

	if _, ok := txt[discovery.TXTKeyProductKey]; ok {
		t.Error("empty product key should not be advertised")
	}
	if txt[discovery.TXTKeyVersion] != discovery.DefaultVersion {
		t.Errorf("ver = %q, want %q", txt[discovery.TXTKeyVersion], discovery.DefaultVersion)
	}
}

func TestDecodeGatewayTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  discovery.TXTRecordMap
		want error
	}{
		{"missing id", discovery.TXTRecordMap{"pk": "abc"}, discovery.ErrMissingRequired},
		{"empty id", discovery.TXTRecordMap{"id": ""}, discovery.ErrInvalidTXTRecord},
		{"id with space", discovery.TXTRecordMap{"id": "bf 01"}, discovery.ErrInvalidTXTRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := discovery.DecodeGatewayTXT(tt.txt)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := discovery.StringsToTXTRecords([]string{"id=a=b", "flag", ""})

	if txt["id"] != "a=b" {
		t.Errorf("id = %q, want a=b", txt["id"])
	}
	if v, ok := txt["flag"]; !ok || v != "" {
		t.Errorf("flag = %q (present %v), want empty value", v, ok)
	}
	if len(txt) != 2 {
		t.Errorf("len = %d, want 2", len(txt))
	}
}

func TestInstanceName(t *testing.T) {
	info := &discovery.GatewayInfo{DeviceID: "bf01"}
	if got := info.InstanceName(); got != "dpgw-bf01" {
		t.Errorf("InstanceName() = %q", got)
	}

	long := &discovery.GatewayInfo{DeviceID: strings.Repeat("a", 100)}
	name := long.InstanceName()
	if len(name) != discovery.MaxInstanceNameLen {
		t.Errorf("len(InstanceName()) = %d, want %d", len(name), discovery.MaxInstanceNameLen)
	}
	if err := discovery.ValidateInstanceName(name); err != nil {
		t.Errorf("ValidateInstanceName() error = %v", err)
	}
	if err := discovery.ValidateInstanceName(name + "x"); !errors.Is(err, discovery.ErrInstanceNameTooLong) {
		t.Errorf("err = %v, want ErrInstanceNameTooLong", err)
	}
}

func TestGatewayServiceAddress(t *testing.T) {
	svc := &discovery.GatewayService{Port: 6668, Addresses: []string{"fe80::1"}}
	addr, err := svc.Address()
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	if addr != "[fe80::1]:6668" {
		t.Errorf("Address() = %q", addr)
	}

	empty := &discovery.GatewayService{Port: 6668}
	if _, err := empty.Address(); !errors.Is(err, discovery.ErrNoAddress) {
		t.Errorf("err = %v, want ErrNoAddress", err)
	}
}

func TestFilterBrowseResults(t *testing.T) {
	in := make(chan *discovery.GatewayService, 3)
	in <- &discovery.GatewayService{DeviceID: "a", ProductKey: "light"}
	in <- &discovery.GatewayService{DeviceID: "b", ProductKey: "plug"}
	in <- &discovery.GatewayService{DeviceID: "c", ProductKey: "light"}
	close(in)

	var ids []string
	for svc := range discovery.FilterBrowseResults(in, discovery.FilterByProductKey("light")) {
		ids = append(ids, svc.DeviceID)
	}
	if strings.Join(ids, ",") != "a,c" {
		t.Errorf("filtered = %v, want [a c]", ids)
	}

	if !discovery.FilterByDeviceID("b")(&discovery.GatewayService{DeviceID: "b"}) {
		t.Error("FilterByDeviceID should match")
	}
}
