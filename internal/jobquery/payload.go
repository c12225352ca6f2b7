package jobquery

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/amishk599/shiftalert/internal/model"
)

type searchRequest struct {
	OperationName string          `json:"operationName"`
	Query         string          `json:"query"`
	Variables     searchVariables `json:"variables"`
}

type searchVariables struct {
	SearchJobRequest searchJobRequest `json:"searchJobRequest"`
}

type searchJobRequest struct {
	Locale       string `json:"locale"`
	Country      string `json:"country"`
	KeyWords     string `json:"keyWords"`
	EqualFilters []any  `json:"equalFilters"`
	RangeFilters []any  `json:"rangeFilters"`
}

func newSearchRequest() searchRequest {
	return searchRequest{
		OperationName: operationName,
		Query:         searchQuery,
		Variables: searchVariables{
			SearchJobRequest: searchJobRequest{
				Locale:       "en-GB",
				Country:      "United Kingdom",
				KeyWords:     "",
				EqualFilters: []any{},
				RangeFilters: []any{},
			},
		},
	}
}

type searchResponse struct {
	Data struct {
		Search struct {
			JobCards []jobCard `json:"jobCards"`
		} `json:"searchJobCardsByLocation"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

// jobCard mirrors the upstream shape. Any field may be missing or null.
type jobCard struct {
	JobID          *string    `json:"jobId"`
	JobTitle       *string    `json:"jobTitle"`
	JobType        *string    `json:"jobType"`
	EmploymentType *string    `json:"employmentType"`
	City           *string    `json:"city"`
	State          *string    `json:"state"`
	PayRateMin     flexNumber `json:"totalPayRateMin"`
	PayRateMax     flexNumber `json:"totalPayRateMax"`
}

func (c jobCard) normalize() model.JobRecord {
	return model.JobRecord{
		ID:             str(c.JobID),
		Title:          str(c.JobTitle),
		JobType:        str(c.JobType),
		EmploymentType: str(c.EmploymentType),
		City:           str(c.City),
		State:          str(c.State),
		PayRateMin:     float64(c.PayRateMin),
		PayRateMax:     float64(c.PayRateMax),
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// flexNumber accepts a JSON number, a numeric string, or null.
// Anything unparseable decodes to zero.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNumber(f)
	return nil
}
