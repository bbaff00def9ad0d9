package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

// prospectColumns are the required input columns for batch runs.
// Optional prospect fields may be omitted entirely.
var prospectColumns = []string{"company", "first_name", "email"}

// ReadProspectsCSV reads batch input prospects.
//
// Extra columns are ignored. Required columns must exist; optional ones
// (last_name, title, industry, trigger, trigger_details) are picked up
// when present.
func ReadProspectsCSV(r io.Reader) ([]core.Prospect, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range prospectColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var prospects []core.Prospect
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return prospects, nil
		}
		if err != nil {
			return nil, err
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		prospects = append(prospects, core.Prospect{
			Company:        get("company"),
			FirstName:      get("first_name"),
			LastName:       get("last_name"),
			Email:          get("email"),
			Title:          get("title"),
			Industry:       get("industry"),
			Trigger:        core.Trigger(get("trigger")),
			TriggerDetails: get("trigger_details"),
		})
	}
}

// WriteCSV writes batch result rows with the stable Header() ordering.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
