package model

import (
	"strings"
)

// MinSearchLength is the shortest accepted search query.
const MinSearchLength = 2

// SearchResult groups matches by entity kind.
type SearchResult struct {
	Query           string            `json:"query"`
	Patients        []*Patient        `json:"patients"`
	ClinicalRecords []*ClinicalRecord `json:"clinicalRecords"`
	Therapies       []*Therapy        `json:"therapies"`
}

// MatchesPatient checks names in both orders. Fiscal code is never searched.
func MatchesPatient(p *Patient, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	first := strings.ToLower(p.FirstName)
	last := strings.ToLower(p.LastName)
	for _, candidate := range []string{first, last, first + " " + last, last + " " + first} {
		if strings.Contains(candidate, q) {
			return true
		}
	}
	return false
}

func MatchesRecord(r *ClinicalRecord, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.Contains(strings.ToLower(r.RecordNumber), q) ||
		strings.Contains(strings.ToLower(r.Diagnosis), q)
}
