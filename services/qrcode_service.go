package services

import (
	"bytes"
	"image/png"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	qrcode "github.com/skip2/go-qrcode"

	core "tabpool-backend/core/payment_job"
)

// QRCodeService renders payment requests for a job as URIs and QR codes.
type QRCodeService struct {
	scheme   string
	label    string
	decimals int
	size     int
}

// NewQRCodeService creates a new QR code service
func NewQRCodeService(scheme, label string, decimals, size int) *QRCodeService {
	if scheme == "" {
		scheme = "solana"
	}
	if label == "" {
		label = "Tab Payment"
	}
	if size <= 0 {
		size = 256
	}
	return &QRCodeService{scheme: scheme, label: label, decimals: decimals, size: size}
}

func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// PaymentURI builds the wallet payment request asking one contributor for
// the job's amount due. Closed jobs no longer accept payments.
func (s *QRCodeService) PaymentURI(job core.Job) (string, error) {
	if job.Closed {
		return "", errors.Wrapf(core.ErrJobClosed, "job %s", job.ID)
	}
	id := job.ID.String()
	var b strings.Builder
	b.WriteString(s.scheme)
	b.WriteString(":")
	b.WriteString(id)
	b.WriteString("?amount=")
	b.WriteString(core.FormatAmount(job.AmountDue, s.decimals))
	b.WriteString("&reference=")
	b.WriteString(escape(id))
	b.WriteString("&label=")
	b.WriteString(escape(s.label))
	b.WriteString("&message=")
	b.WriteString(escape("Payment to job " + id))
	return b.String(), nil
}

// GenerateQRCode encodes the payment URI of a job as a PNG image.
func (s *QRCodeService) GenerateQRCode(job core.Job) ([]byte, error) {
	uri, err := s.PaymentURI(job)
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate QR code")
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(s.size)); err != nil {
		return nil, errors.Wrap(err, "failed to encode QR code to PNG")
	}
	return buf.Bytes(), nil
}

// TerminalQRCode renders the payment URI with half-block characters.
func (s *QRCodeService) TerminalQRCode(job core.Job) (string, error) {
	uri, err := s.PaymentURI(job)
	if err != nil {
		return "", err
	}
	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate QR code")
	}
	return qr.ToSmallString(false), nil
}
