package roster

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// gvizResponse is the Google Visualization query response.
type gvizResponse struct {
	Status string `json:"status"`
	Errors []struct {
		Reason          string `json:"reason"`
		Message         string `json:"message"`
		DetailedMessage string `json:"detailed_message"`
	} `json:"errors"`
	Table *struct {
		Rows []struct {
			C []*gvizCell `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

type gvizCell struct {
	V any    `json:"v"`
	F string `json:"f"`
}

func (c *gvizCell) String() string {
	if c == nil {
		return ""
	}
	switch v := c.V.(type) {
	case nil:
		return c.F
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		if c.F != "" {
			return c.F
		}
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// stripWrapper removes the JavaScript callback around a gviz payload,
// e.g. "/*O_o*/\ngoogle.visualization.Query.setResponse({...});".
func stripWrapper(body []byte) ([]byte, error) {
	start := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return nil, eris.New("gviz: no JSON object in response")
	}
	return body[start : end+1], nil
}

// decodeGViz turns a gviz payload into string rows.
func decodeGViz(body []byte) ([][]string, error) {
	payload, err := stripWrapper(body)
	if err != nil {
		return nil, err
	}

	var resp gvizResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, eris.Wrap(err, "gviz: decode response")
	}

	if resp.Status == "error" {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msg := e.DetailedMessage
			if msg == "" {
				msg = e.Message
			}
			msgs = append(msgs, e.Reason+": "+msg)
		}
		return nil, eris.Errorf("gviz: query failed: %s", strings.Join(msgs, "; "))
	}
	if resp.Table == nil {
		return nil, eris.New("gviz: response has no table")
	}

	rows := make([][]string, 0, len(resp.Table.Rows))
	for _, r := range resp.Table.Rows {
		row := make([]string, len(r.C))
		for i, c := range r.C {
			row[i] = c.String()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
