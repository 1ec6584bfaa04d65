package discovery

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TXTRecordMap holds TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeGatewayTXT builds the TXT records advertised for a gateway. The
// protocol version defaults to DefaultVersion.
func EncodeGatewayTXT(info *GatewayInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyDeviceID: info.DeviceID,
		TXTKeyVersion:  cmp.Or(info.Version, DefaultVersion),
	}
	if info.ProductKey != "" {
		txt[TXTKeyProductKey] = info.ProductKey
	}
	return txt
}

// DecodeGatewayTXT parses gateway TXT records. The device ID is required
// and may not contain spaces or '='.
func DecodeGatewayTXT(txt TXTRecordMap) (*GatewayInfo, error) {
	id, ok := txt[TXTKeyDeviceID]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyDeviceID)
	case id == "" || strings.ContainsAny(id, " ="):
		return nil, fmt.Errorf("%w: invalid device ID %q", ErrInvalidTXTRecord, id)
	}
	return &GatewayInfo{
		DeviceID:   id,
		ProductKey: txt[TXTKeyProductKey],
		Version:    txt[TXTKeyVersion],
	}, nil
}

// TXTRecordsToStrings renders txt as sorted "key=value" strings, the form
// zeroconf takes.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for _, k := range slices.Sorted(maps.Keys(txt)) {
		out = append(out, k+"="+txt[k])
	}
	return out
}

// StringsToTXTRecords parses "key=value" strings. A bare key maps to an
// empty value; empty strings are skipped.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		if s == "" {
			continue
		}
		k, v, _ := strings.Cut(s, "=")
		txt[k] = v
	}
	return txt
}

// TXTRecordSize returns the encoded size: a length byte plus "key=value"
// per entry.
func TXTRecordSize(txt TXTRecordMap) int {
	size := 0
	for k, v := range txt {
		size += len(k) + len(v) + 2
	}
	return size
}

// ValidateInstanceName checks the mDNS instance label length.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

