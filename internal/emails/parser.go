// Package emails reads EML and MBOX inputs into raw email records.
package emails

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobtrack/internal/models"
)

// ParseEMLFile parses a single EML file.
func ParseEMLFile(filename string, ownerID int64) (*models.RawEmail, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open EML file: %w", err)
	}
	defer file.Close()

	return parseMessage(file, ownerID)
}

// MBOXProgress tracks the progress of MBOX file parsing.
type MBOXProgress struct {
	BytesProcessed  int64
	TotalBytes      int64
	EmailsProcessed int
	PercentComplete float64
}

// MBOXBatchCallback is called for each batch of parsed emails.
type MBOXBatchCallback func(batch []models.RawEmail, progress MBOXProgress) error

// ParseMBOXFileStreaming parses an MBOX file in batches so large
// mailboxes never have to fit in memory.
func ParseMBOXFileStreaming(filename string, ownerID int64, batchSize int, logger zerolog.Logger, callback MBOXBatchCallback) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open MBOX file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat MBOX file: %w", err)
	}
	totalBytes := fileInfo.Size()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var (
		batch          []models.RawEmail
		current        bytes.Buffer
		emailCount     int
		bytesProcessed int64
	)

	flush := func(final bool) error {
		if len(batch) == 0 {
			return nil
		}
		pct := float64(bytesProcessed) / float64(totalBytes) * 100
		if final {
			pct = 100.0
		}
		progress := MBOXProgress{
			BytesProcessed:  bytesProcessed,
			TotalBytes:      totalBytes,
			EmailsProcessed: emailCount,
			PercentComplete: pct,
		}
		if err := callback(batch, progress); err != nil {
			return fmt.Errorf("batch processing error at email %d: %w", emailCount, err)
		}
		batch = nil
		return nil
	}

	parseCurrent := func() {
		raw, err := parseMessage(&current, ownerID)
		if err != nil {
			logger.Warn().Err(err).Int("email", emailCount+1).Msg("failed to parse mbox entry")
		} else {
			batch = append(batch, *raw)
		}
		emailCount++
	}

	for scanner.Scan() {
		line := scanner.Text()
		bytesProcessed += int64(len(line) + 1)

		// Each mbox entry starts with a "From " separator line. The
		// separator itself is never part of the message.
		if strings.HasPrefix(line, "From ") {
			if current.Len() > 0 {
				parseCurrent()
				if len(batch) >= batchSize {
					if err := flush(false); err != nil {
						return err
					}
				}
				current.Reset()
			}
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		parseCurrent()
	}
	if err := flush(true); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading MBOX file: %w", err)
	}

	logger.Info().Int("emails", emailCount).Str("file", filepath.Base(filename)).
		Msg("mbox parsing complete")
	return nil
}

// ParseDirectory recursively parses all EML files under dirPath.
func ParseDirectory(dirPath string, ownerID int64, logger zerolog.Logger) ([]models.RawEmail, error) {
	var raws []models.RawEmail

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".eml") {
			return nil
		}
		raw, err := ParseEMLFile(path, ownerID)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("failed to parse eml file")
			return nil
		}
		raws = append(raws, *raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return raws, nil
}

func parseMessage(r io.Reader, ownerID int64) (*models.RawEmail, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read email message: %w", err)
	}

	header := msg.Header
	raw := &models.RawEmail{
		OwnerID:  ownerID,
		SourceID: cleanMessageID(header.Get("Message-ID")),
		From:     header.Get("From"),
		To:       header.Get("To"),
		Subject:  decodeHeader(header.Get("Subject")),
	}
	// Some exports drop Message-ID; the record still needs a stable
	// source identifier.
	if raw.SourceID == "" {
		raw.SourceID = uuid.NewString()
	}

	raw.ReceivedAt = time.Now().UTC()
	if dateStr := header.Get("Date"); dateStr != "" {
		if date, err := mail.ParseDate(dateStr); err == nil {
			raw.ReceivedAt = date.UTC()
		}
	}

	text, html, err := extractBody(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract body: %w", err)
	}
	raw.BodyText = text
	raw.BodyHTML = html

	return raw, nil
}

// extractBody returns the plain-text and HTML bodies. Both are kept; the
// unwrapping stage falls back to HTML when the text part is empty.
func extractBody(msg *mail.Message) (text, html string, err error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", "", err
		}
		return string(body), "", nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", "", err
		}
		return string(body), "", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipartBody(msg.Body, params["boundary"])
	}

	content, err := decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return "", "", err
	}
	if strings.HasPrefix(mediaType, "text/html") {
		return "", content, nil
	}
	return content, "", nil
}

func extractMultipartBody(body io.Reader, boundary string) (text, html string, err error) {
	mr := multipart.NewReader(body, boundary)
	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", err
		}

		partContentType := part.Header.Get("Content-Type")
		mediaType, params, _ := mime.ParseMediaType(partContentType)

		if strings.HasPrefix(mediaType, "multipart/") {
			if nestedBoundary, ok := params["boundary"]; ok {
				nestedText, nestedHTML, err := extractMultipartBody(part, nestedBoundary)
				if err == nil {
					if nestedText != "" {
						textParts = append(textParts, nestedText)
					}
					if nestedHTML != "" {
						htmlParts = append(htmlParts, nestedHTML)
					}
				}
			}
			continue
		}

		content, err := decodePart(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(mediaType, "text/plain"):
			textParts = append(textParts, content)
		case strings.HasPrefix(mediaType, "text/html"):
			htmlParts = append(htmlParts, content)
		}
	}

	return strings.Join(textParts, "\n\n"), strings.Join(htmlParts, "\n\n"), nil
}

func decodePart(body io.Reader, transferEncoding string) (string, error) {
	reader := body
	switch strings.ToLower(transferEncoding) {
	case "quoted-printable":
		reader = quotedprintable.NewReader(body)
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, body)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// decodeHeader decodes MIME encoded-word headers.
func decodeHeader(header string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func cleanMessageID(msgID string) string {
	msgID = strings.TrimPrefix(strings.TrimSpace(msgID), "<")
	return strings.TrimSuffix(msgID, ">")
}
