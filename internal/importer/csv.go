package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"udb/internal/domain"
)

// subnetRow is one parsed data line of the subnet CSV. The expected
// header is IPv6,IPv4,VRF,L3VNI,L2VNI,VLAN,TLD,Name,Description;
// column order in the file does not matter.
type subnetRow struct {
	Ranges      []string
	Vrf         string
	L3VNI       domain.NetworkID
	L2VNI       domain.NetworkID
	Vlan        domain.NetworkID
	Zone        string
	Name        string
	Description string
}

var csvColumns = []string{"IPv6", "IPv4", "VRF", "L3VNI", "L2VNI", "VLAN", "TLD", "Name", "Description"}

func parseSubnetCSV(r io.Reader) ([]subnetRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &rowError{Line: 1, Err: fmt.Errorf("missing CSV header: %w", err)}
	}
	index := make(map[string]int)
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, want := range []string{"IPv6", "VRF", "Name"} {
		if _, ok := index[want]; !ok {
			return nil, &rowError{Line: 1, Err: fmt.Errorf("missing CSV column %q", want)}
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []subnetRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &rowError{Line: line, Err: err}
		}
		if len(record) == 0 {
			continue
		}

		row := subnetRow{
			Vrf:         field(record, "VRF"),
			Zone:        field(record, "TLD"),
			Name:        field(record, "Name"),
			Description: field(record, "Description"),
		}
		for _, col := range []string{"IPv6", "IPv4"} {
			if v := field(record, col); v != "" {
				row.Ranges = append(row.Ranges, v)
			}
		}
		if len(row.Ranges) == 0 {
			return nil, &rowError{Line: line, Err: fmt.Errorf("row has neither IPv6 nor IPv4 range")}
		}
		if row.L3VNI, err = parseNetworkID(field(record, "L3VNI")); err != nil {
			return nil, &rowError{Line: line, Err: err}
		}
		if row.L2VNI, err = parseNetworkID(field(record, "L2VNI")); err != nil {
			return nil, &rowError{Line: line, Err: err}
		}
		if row.Vlan, err = parseNetworkID(field(record, "VLAN")); err != nil {
			return nil, &rowError{Line: line, Err: err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseNetworkID(s string) (domain.NetworkID, error) {
	if s == "" {
		return domain.NetworkIDUndefined, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return domain.NetworkIDUndefined, fmt.Errorf("invalid network id %q", s)
	}
	return domain.NetworkID(n), nil
}
