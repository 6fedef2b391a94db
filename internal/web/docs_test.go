package web

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/statements/internal/core"
)

func TestDocsPage_Render(t *testing.T) {
	providers := []providerInfo{
		{
			Provider: "revolut_csv",
			Label:    "Revolut <CSV>",
			Keys:     []string{"type", "amount"},
			Fields: []fieldInfo{
				{Name: "transaction_type", Type: "string", Aliases: []string{"type"}},
				{Name: "amount", Type: "float"},
			},
		},
		{Provider: "shopify_orders", Keys: []string{"order_id", "total_price"}},
	}
	dynamic := []core.SchemaDefinition{{Name: "bank_x", Keys: []string{"iban", "value"}}}

	tests := []struct {
		name     string
		filesDir bool
		want     []string
		notWant  []string
	}{
		{
			name: "providers and routes",
			want: []string{
				"<!doctype html>",
				"<td><code>/api/normalize</code></td>",
				"<h3><code>revolut_csv</code> Revolut &lt;CSV&gt;</h3>",
				"<tr><td><code>transaction_type</code></td><td>string</td><td>type</td></tr>",
				"<p>Recognized keys: <code>order_id, total_price</code>. Records pass through uncast.</p>",
				"<tr><td><code>bank_x</code></td><td>iban, value</td></tr>",
			},
			notWant: []string{"Revolut <CSV>", "/docs/files/"},
		},
		{
			name:     "files link",
			filesDir: true,
			want:     []string{`<a href="/docs/files/">`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := docsPage(providers, dynamic, tt.filesDir).Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render: %v", err)
			}
			body := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("missing %q in:\n%s", w, body)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(body, w) {
					t.Errorf("unexpected %q in output", w)
				}
			}
		})
	}
}

func TestDocsPage_NoDynamicSection(t *testing.T) {
	var buf bytes.Buffer
	if err := docsPage(nil, nil, false).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "Dynamic schemas") {
		t.Error("dynamic schema table rendered without schemas")
	}
}
