package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeDeviceTXT creates the TXT records announced for a device.
func EncodeDeviceTXT(info *DeviceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeySerial:         info.Serial,
		TXTKeyModel:          info.Model,
		TXTKeyPort:           strconv.FormatUint(uint64(info.Port), 10),
		TXTKeyClusterVersion: strconv.FormatInt(info.ClusterVersion, 10),
	}
	if info.TLSPort != 0 {
		txt[TXTKeyTLSPort] = strconv.FormatUint(uint64(info.TLSPort), 10)
	}
	return txt
}

// DecodeDeviceTXT parses TXT records announced by a device.
func DecodeDeviceTXT(txt TXTRecordMap) (*DeviceInfo, error) {
	info := &DeviceInfo{}

	var ok bool
	info.Serial, ok = txt[TXTKeySerial]
	if !ok || info.Serial == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}
	info.Model = txt[TXTKeyModel]

	portStr, ok := txt[TXTKeyPort]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPort)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyPort, portStr)
	}
	info.Port = uint16(port)

	if s, ok := txt[TXTKeyTLSPort]; ok {
		p, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyTLSPort, s)
		}
		info.TLSPort = uint16(p)
	}

	if s, ok := txt[TXTKeyClusterVersion]; ok {
		cv, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyClusterVersion, s)
		}
		info.ClusterVersion = cv
	}

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		if !found {
			// Key without value (boolean flag)
			txt[k] = ""
			continue
		}
		txt[k] = v
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: instance name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
