package har

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/apibuilder/pkg/types"
)

// ErrInvalid wraps every error caused by the content of a HAR document.
var ErrInvalid = errors.New("invalid har")

type HARFile struct {
	Log struct {
		Pages []struct {
			Title string `json:"title"`
		} `json:"pages"`
		Entries []Entry `json:"entries"`
	} `json:"log"`
}

// Title is the title of the first recorded page, if any.
func (hf *HARFile) Title() string {
	if len(hf.Log.Pages) == 0 {
		return ""
	}
	return hf.Log.Pages[0].Title
}

type Entry struct {
	StartedDateTime string `json:"startedDateTime"`
	Time            int64  `json:"time"`
	Request         struct {
		Method  string `json:"method"`
		URL     string `json:"url"`
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		PostData struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Status  int `json:"status"`
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Content struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

// Parse reads a HAR file into traffic logs ordered by start time.
func Parse(filePath string) ([]types.TrafficLog, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	_, logs, err := ParseReader(f)
	return logs, err
}

// ParseReader decodes a HAR document from r. It returns the decoded file
// alongside the logs so callers can read page metadata.
func ParseReader(r io.Reader) (*HARFile, []types.TrafficLog, error) {
	var hf HARFile
	if err := json.NewDecoder(r).Decode(&hf); err != nil {
		return nil, nil, fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	logs, err := hf.TrafficLogs()
	if err != nil {
		return nil, nil, err
	}
	return &hf, logs, nil
}

// TrafficLogs converts the entries, sorted by start time and numbered from 1.
func (hf *HARFile) TrafficLogs() ([]types.TrafficLog, error) {
	logs := make([]types.TrafficLog, 0, len(hf.Log.Entries))
	for _, e := range hf.Log.Entries {
		ts, err := time.Parse(time.RFC3339Nano, e.StartedDateTime)
		if err != nil {
			return nil, fmt.Errorf("%w: startedDateTime %q: %v", ErrInvalid, e.StartedDateTime, err)
		}
		u, err := url.Parse(e.Request.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: request url: %v", ErrInvalid, err)
		}
		reqHeaders := map[string]string{}
		for _, h := range e.Request.Headers {
			reqHeaders[h.Name] = h.Value
		}
		respHeaders := map[string]string{}
		for _, h := range e.Response.Headers {
			respHeaders[h.Name] = h.Value
		}

		reqBody, reqEnc := decodeBody(e.Request.PostData.Text, e.Request.PostData.Encoding, e.Request.PostData.MimeType)
		respBody, _ := decodeBody(e.Response.Content.Text, e.Response.Content.Encoding, e.Response.Content.MimeType)

		logs = append(logs, types.TrafficLog{
			Timestamp:           ts,
			Method:              strings.ToUpper(e.Request.Method),
			Host:                u.Host,
			Path:                u.Path,
			QueryParams:         u.Query(),
			RequestHeaders:      reqHeaders,
			RequestBody:         reqBody,
			RequestBodyEncoding: reqEnc,
			ContentType:         e.Request.PostData.MimeType,
			StatusCode:          e.Response.Status,
			ResponseHeaders:     respHeaders,
			ResponseBody:        respBody,
			ResponseContentType: e.Response.Content.MimeType,
			LatencyMs:           e.Time,
			CallCount:           1,
		})
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.Before(logs[j].Timestamp)
	})
	for i := range logs {
		logs[i].Seq = i + 1
	}
	return logs, nil
}

func decodeBody(text, encoding, mimeType string) (string, string) {
	if text == "" {
		return "", "plain"
	}
	if isBinaryContentType(mimeType) {
		return "", "omitted"
	}
	if strings.EqualFold(encoding, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return "", "omitted"
		}
		return string(decoded), "base64"
	}
	return text, "plain"
}

func isBinaryContentType(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") || mt == "application/octet-stream"
}
