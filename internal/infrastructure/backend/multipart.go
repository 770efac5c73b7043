package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/taxdesk/filing-client/internal/core/ports"
)

// Multipart form field names of POST /requests.
const (
	FieldUserID        = "userId"
	FieldPersonalInfo  = "personalInfo"
	FieldBankInfo      = "bankInfo"
	FieldPaymentMethod = "paymentMethod"
	FieldServiceLevel  = "serviceLevel"
	FieldPrice         = "price"
	FieldDocuments     = "documents"
)

// Multipart streams in as a single multipart/form-data request. Files are
// read while the body is being sent, never buffered as a whole.
func (c *Client) Multipart(ctx context.Context, path string, in ports.NewFilingRequest) Result {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, in))
	}()

	res := c.do(ctx, call{
		method:      http.MethodPost,
		path:        path,
		body:        pr,
		contentType: mw.FormDataContentType(),
		authed:      true,
	})
	// Unblocks the writer when the request ended before the body was drained.
	pr.Close()
	return res
}

func writeForm(mw *multipart.Writer, in ports.NewFilingRequest) error {
	personal, err := json.Marshal(in.Personal)
	if err != nil {
		return err
	}
	banking, err := json.Marshal(in.Banking)
	if err != nil {
		return err
	}
	fields := [][2]string{
		{FieldUserID, in.OwnerUID},
		{FieldPersonalInfo, string(personal)},
		{FieldBankInfo, string(banking)},
		{FieldPaymentMethod, in.PaymentMethod},
		{FieldServiceLevel, string(in.Plan.Level)},
		{FieldPrice, strconv.FormatFloat(in.Plan.Price, 'f', 2, 64)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	for _, doc := range in.Documents {
		if err := writeFile(mw, doc); err != nil {
			return fmt.Errorf("attach %s: %w", doc.Name, err)
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(mw *multipart.Writer, doc ports.Upload) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldDocuments, quoteEscaper.Replace(doc.Name)))
	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	rc, err := doc.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(part, rc)
	return err
}
