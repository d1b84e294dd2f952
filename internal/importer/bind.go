package importer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"udb/internal/domain"
)

// parseBindZone reads the text form of a zone transfer: one record per
// line, `name [ttl] [class] type value`. SOA and unsupported record
// types are counted as skipped rather than rejected, so a dig axfr
// dump loads as-is.
func parseBindZone(r io.Reader) ([]*domain.DnsRecord, int, error) {
	supported := make(map[string]bool, len(domain.DnsRecordTypes))
	for _, t := range domain.DnsRecordTypes {
		supported[t] = true
	}

	var records []*domain.DnsRecord
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "$") { // $ORIGIN, $TTL
			continue
		}

		rec, err := parseBindLine(fields)
		if err != nil {
			return nil, 0, &rowError{Line: line, Err: err}
		}
		if rec.Type == "SOA" || !supported[rec.Type] {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return records, skipped, nil
}

func parseBindLine(fields []string) (*domain.DnsRecord, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed record %q", strings.Join(fields, " "))
	}
	rec := &domain.DnsRecord{
		Name: strings.TrimSuffix(fields[0], "."),
		TTL:  3600,
	}
	rest := fields[1:]

	if ttl, err := strconv.Atoi(rest[0]); err == nil {
		rec.TTL = ttl
		rest = rest[1:]
	}
	if len(rest) > 0 && strings.EqualFold(rest[0], "IN") {
		rest = rest[1:]
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("record %q has no value", rec.Name)
	}
	rec.Type = strings.ToUpper(rest[0])
	rec.Value = strings.Join(rest[1:], " ")
	switch rec.Type {
	case "CNAME", "PTR", "NS":
		rec.Value = strings.TrimSuffix(rec.Value, ".")
	case "TXT":
		rec.Value = strings.Trim(rec.Value, `"`)
	}
	return rec, nil
}
