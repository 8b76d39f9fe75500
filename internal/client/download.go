package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/subgrab/subgrab/internal/apperrors"
	"github.com/subgrab/subgrab/internal/models"
)

// RequestDownload asks POST /download for a temporary link to fileID.
func (c *client) RequestDownload(ctx context.Context, fileID int64) (*models.DownloadLink, error) {
	body, _, err := c.execute(ctx, call{
		operation: "Download",
		method:    http.MethodPost,
		target:    c.baseURL + "/download",
		body:      models.DownloadLinkRequest{FileID: fileID, SubFormat: c.subFormat},
		provider:  true,
	})
	if err != nil {
		return nil, err
	}

	var link models.DownloadLink
	if err := json.Unmarshal(body, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal download response: %w", err)
	}
	if link.Link == "" {
		return nil, errors.New("download response did not include a link")
	}
	return &link, nil
}

// FetchContent downloads the subtitle behind a temporary link. Valid UTF-8
// is returned byte for byte; other bodies are converted from the declared
// charset, or from the sniffed one when none is declared.
func (c *client) FetchContent(ctx context.Context, link string) ([]byte, error) {
	body, contentType, err := c.execute(ctx, call{
		operation: "Subtitle fetch",
		method:    http.MethodGet,
		target:    link,
	})
	if err != nil {
		var upstream *apperrors.ErrUpstream
		if errors.As(err, &upstream) {
			return nil, fmt.Errorf("failed to fetch subtitle content: %d", upstream.StatusCode)
		}
		return nil, err
	}

	return toUTF8(body, contentType)
}

func toUTF8(body []byte, contentType string) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	label := declaredCharset(contentType)
	if label != "" {
		if enc, name := charset.Lookup(label); enc != nil {
			if name == "utf-8" {
				return body, nil
			}
			return decode(charset.NewReaderLabel(label, bytes.NewReader(body)))
		}
	}

	if utf8.Valid(body) {
		return body, nil
	}
	return decode(charset.NewReader(bytes.NewReader(body), contentType))
}

// declaredCharset returns the charset parameter of a Content-Type, if any.
func declaredCharset(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

func decode(reader io.Reader, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to detect subtitle charset: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode subtitle content: %w", err)
	}
	return decoded, nil
}
