// Package archive names, writes and reads the protocol's JSON and Markdown
// artifacts through the artifact store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"prereg/internal/blob"
	"prereg/pkg/domain"
)

// DefaultPrefix is the key prefix artifacts are written under.
const DefaultPrefix = "results/"

const stampLayout = "20060102-150405"

// Archive writes artifacts to one store.
type Archive struct {
	store  blob.Store
	prefix string
}

// New wraps store using DefaultPrefix.
func New(store blob.Store) *Archive { return &Archive{store: store, prefix: DefaultPrefix} }

// Store returns the underlying artifact store.
func (a *Archive) Store() blob.Store { return a.store }

// RegistrationKey names the registration artifact created at t.
func (a *Archive) RegistrationKey(t time.Time) string {
	return a.prefix + "pre-registration-" + t.UTC().Format(stampLayout) + ".json"
}

// ComparisonKeys names the report and document artifacts of a comparison.
// A non-empty output is a local report path; the document path always shares
// its stem.
func (a *Archive) ComparisonKeys(t time.Time, output string) (reportKey, docKey string) {
	if output != "" {
		return output, strings.TrimSuffix(output, filepath.Ext(output)) + ".json"
	}
	reportKey = a.prefix + "comparison-" + t.UTC().Format(stampLayout) + ".md"
	return reportKey, strings.TrimSuffix(reportKey, path.Ext(reportKey)) + ".json"
}

// CheckOutput reports whether output can receive a comparison report and
// document. An empty output always can.
func CheckOutput(output string) error {
	if output == "" {
		return nil
	}
	if strings.TrimSpace(output) == "" {
		return domain.ConfigError{Key: "output", Reason: "output path is blank"}
	}
	doc := strings.TrimSuffix(output, filepath.Ext(output)) + ".json"
	if doc == output {
		return domain.ConfigError{Key: "output", Reason: output + " would be overwritten by the comparison document; use a .md path"}
	}
	for _, p := range []string{output, doc} {
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			return domain.ConfigError{Key: "output", Reason: p + " is a directory"}
		}
	}
	return nil
}

// SaveRegistration writes doc as indented JSON.
func (a *Archive) SaveRegistration(ctx context.Context, doc domain.RegistrationDocument) (blob.Info, error) {
	return a.putJSON(ctx, a.RegistrationKey(doc.CreatedAt), doc, map[string]string{"model": doc.ModelID})
}

// SaveComparison writes the Markdown report and the comparison document.
// Without output both go to the store under timestamped keys. With output
// they are written to that local path and its .json sibling, replacing
// earlier files.
func (a *Archive) SaveComparison(ctx context.Context, doc domain.ComparisonDocument, report, output string) (reportInfo, docInfo blob.Info, err error) {
	if err := CheckOutput(output); err != nil {
		return blob.Info{}, blob.Info{}, err
	}
	reportKey, docKey := a.ComparisonKeys(doc.CreatedAt, output)
	put := func(key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
		if output != "" {
			return blob.WriteFile(key, r, opts)
		}
		return a.store.Put(ctx, key, r, opts)
	}
	md := map[string]string{"run_id": doc.RunID}
	reportInfo, err = put(reportKey, strings.NewReader(report), blob.PutOptions{ContentType: "text/markdown; charset=utf-8", Metadata: md})
	if err != nil {
		return blob.Info{}, blob.Info{}, fmt.Errorf("write report %s: %w", reportKey, err)
	}
	data, err := encodeJSON(docKey, doc)
	if err != nil {
		return reportInfo, blob.Info{}, err
	}
	docInfo, err = put(docKey, bytes.NewReader(data), blob.PutOptions{ContentType: "application/json", Metadata: md})
	if err != nil {
		return reportInfo, blob.Info{}, fmt.Errorf("write %s: %w", docKey, err)
	}
	return reportInfo, docInfo, nil
}

func encodeJSON(key string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return append(data, '\n'), nil
}

func (a *Archive) putJSON(ctx context.Context, key string, v any, md map[string]string) (blob.Info, error) {
	data, err := encodeJSON(key, v)
	if err != nil {
		return blob.Info{}, err
	}
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: "application/json", Metadata: md})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	return info, nil
}

// LoadRegistration reads a registration document from a local file path or,
// when no such file exists, from the artifact store by key. It returns the
// reference that was resolved.
func (a *Archive) LoadRegistration(ctx context.Context, ref string) (domain.RegistrationDocument, string, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.RegistrationDocument{}, "", domain.ConfigError{Key: "predictions", Reason: "no registration document given"}
	}
	data, source, err := a.read(ctx, ref)
	if err != nil {
		return domain.RegistrationDocument{}, "", err
	}
	var doc domain.RegistrationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.RegistrationDocument{}, "", domain.ConfigError{Key: "predictions", Reason: fmt.Sprintf("%s is not a registration document: %v", source, err)}
	}
	return doc, source, nil
}

func (a *Archive) read(ctx context.Context, ref string) ([]byte, string, error) {
	data, err := os.ReadFile(ref)
	if err == nil {
		return data, ref, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("read %s: %w", ref, err)
	}
	_, rc, err := a.store.Get(ctx, ref)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, "", domain.ConfigError{Key: "predictions", Reason: "predictions file not found: " + ref}
	}
	if err != nil {
		return nil, "", fmt.Errorf("read artifact %s: %w", ref, err)
	}
	defer func() { _ = rc.Close() }()
	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return data, ref, nil
}
