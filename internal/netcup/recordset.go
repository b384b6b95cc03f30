package netcup

import "fmt"

// RecordSet is an insertion-ordered collection of records for one zone.
// It maps to the netcup dnsrecordset datatype. Apart from explicit
// delete-marking, records only enter or change through Merge.
type RecordSet struct {
	records []*Record
}

// NewRecordSet creates a record set containing the given records.
func NewRecordSet(records ...*Record) *RecordSet {
	return &RecordSet{records: records}
}

// Records returns the underlying records in insertion order.
func (s *RecordSet) Records() []*Record {
	return s.records
}

// Len returns the number of records, including delete-marked ones.
func (s *RecordSet) Len() int {
	return len(s.records)
}

// GetByHostname returns all records with the given hostname.
func (s *RecordSet) GetByHostname(hostname string) []*Record {
	var matches []*Record
	for _, r := range s.records {
		if r.Hostname == hostname {
			matches = append(matches, r)
		}
	}
	return matches
}

// live returns the records with the given hostname that are not marked for
// deletion. Delete-marked records are dead slots waiting for the next
// updateDnsRecords and must not count against the coexistence invariant.
func (s *RecordSet) live(hostname string) []*Record {
	var matches []*Record
	for _, r := range s.records {
		if r.Hostname == hostname && !r.DeleteRecord {
			matches = append(matches, r)
		}
	}
	return matches
}

// Merge applies one desired record onto the set and reports whether the set
// changed. At most one record may exist per hostname, with one exception:
// an A and an AAAA record may coexist for the same hostname (dual-stack).
// Any other desired type collapses an existing dual-stack pair back to a
// single record, marking the surplus one for deletion.
func (s *RecordSet) Merge(desired *Record) (bool, error) {
	matches := s.live(desired.Hostname)

	switch len(matches) {
	case 0:
		s.append(desired)
		return true, nil

	case 1:
		existing := matches[0]
		if isDualStackPair(existing.Type, desired.Type) {
			s.append(desired)
			return true, nil
		}
		return existing.ApplyUpdate(desired), nil

	case 2:
		if desired.Type == TypeA || desired.Type == TypeAAAA {
			for _, existing := range matches {
				if existing.Type == desired.Type {
					return existing.ApplyUpdate(desired), nil
				}
			}
			return false, fmt.Errorf(
				"%w: no %s record among dual-stack pair for %q",
				ErrInvariant, desired.Type, desired.Hostname)
		}
		// Collapsing back to single-stack: the first record takes the new
		// identity, the second is marked for deletion.
		matches[0].ApplyUpdate(desired)
		matches[1].DeleteRecord = true
		return true, nil

	default:
		return false, fmt.Errorf(
			"%w: %d records share hostname %q",
			ErrInvariant, len(matches), desired.Hostname)
	}
}

func (s *RecordSet) append(desired *Record) {
	rec := *desired
	s.records = append(s.records, &rec)
}

func isDualStackPair(a, b string) bool {
	return (a == TypeA && b == TypeAAAA) || (a == TypeAAAA && b == TypeA)
}

// TableRows returns one row per record for logger.Table.
func (s *RecordSet) TableRows() [][]string {
	rows := make([][]string, 0, len(s.records))
	for _, r := range s.records {
		status := r.State
		if r.DeleteRecord {
			status = "delete"
		}
		rows = append(rows, []string{r.Hostname, r.Type, r.Destination, status})
	}
	return rows
}
