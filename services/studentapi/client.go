// Package studentapi submits completed registrations to the student records backend.
package studentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

const studentsEndpoint = "/students"

type Client struct {
	baseURL string
	token   string
	blobs   core.BlobStore
	rc      *rest.Client
}

var _ registration.Submitter = (*Client)(nil) // interface compliance check

func NewClient(conf core.StudentAPIConfig, blobs core.BlobStore) (*Client, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.BaseURL, "BaseURL"),
		vala.IsNotNil(blobs, "blobs"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "checking student api client arguments")
	}
	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		token:   conf.Token,
		blobs:   blobs,
		rc:      &rest.Client{HTTPClient: &http.Client{Timeout: conf.Timeout}},
	}, nil
}

// Submit posts the payload as multipart/form-data. A non-2xx answer is returned as *registration.SubmissionError.
func (c *Client) Submit(ctx context.Context, payload registration.Payload) error {
	body, contentType, err := c.encode(ctx, payload)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"Content-Type": contentType,
		"Accept":       "application/json",
	}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	resp, err := c.rc.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + studentsEndpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return errors.Wrap(err, "posting registration")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return decodeError(resp.StatusCode, resp.Body)
}

func (c *Client) encode(ctx context.Context, payload registration.Payload) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, key := range payload.Keys() {
		if err := mw.WriteField(key, payload.Fields[key]); err != nil {
			return nil, "", errors.Wrapf(err, "writing field %q", key)
		}
	}
	for _, key := range payload.FileKeys() {
		if err := c.writeFile(ctx, mw, key, payload.Files[key]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing multipart body")
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (c *Client) writeFile(ctx context.Context, mw *multipart.Writer, key string, doc *registration.Document) error {
	_, rc, err := c.blobs.Get(ctx, doc.Key)
	if err != nil {
		return errors.Wrapf(err, "opening %s", key)
	}
	defer rc.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+escapeQuotes(key)+`"; filename="`+escapeQuotes(doc.Name)+`"`)
	h.Set("Content-Type", doc.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return errors.Wrapf(err, "creating part %s", key)
	}
	if _, err = io.Copy(part, rc); err != nil {
		return errors.Wrapf(err, "copying %s", key)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type errorBody struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  []core.FieldError `json:"errors"`
}

// decodeError reads the backend error body: {"message"|"error": "...", "errors": [{"field", "message"}]}.
// Bodies that are not JSON leave the message empty so the generic failure text is shown.
func decodeError(status int, body string) error {
	subErr := &registration.SubmissionError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal([]byte(body), &eb); err != nil {
		return subErr
	}
	subErr.Message = eb.Message
	if subErr.Message == "" {
		subErr.Message = eb.Error
	}
	subErr.Fields = eb.Errors
	return subErr
}
