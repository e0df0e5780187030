package paths

import (
	"testing"
)

func TestItemDir_BasicLayout(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		category string
		hash     string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain components",
			folder:   "styles",
			category: "foxLora",
			hash:     "abc123",
			expected: "styles/foxLora/abc123",
		},
		{
			name:     "category with spaces survives",
			folder:   "styles",
			category: "Alpha Style",
			hash:     "abc123",
			expected: "styles/Alpha Style/abc123",
		},
		{
			name:     "unsafe characters stripped from category",
			folder:   "styles",
			category: `al/pha:sty*le`,
			hash:     "h",
			expected: "styles/alphastyle/h",
		},
		{
			name:     "reserved category replaced",
			folder:   "styles",
			category: "CON",
			hash:     "h",
			expected: "styles/unnamed/h",
		},
		{
			name:    "empty folder rejected",
			folder:  "",
			hash:    "h",
			wantErr: true,
		},
		{
			name:    "empty hash rejected",
			folder:  "styles",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ItemDir(tt.folder, tt.category, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ItemDir() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ItemDir() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestItemDir_TraversalRejected(t *testing.T) {
	// A hash never contains separators in practice, but the layout must not
	// trust its inputs.
	if _, err := ItemDir("styles", "cat", "../../etc"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestAssetFileName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		ext      string
		expected string
	}{
		{"final segment with extension swap", "http://x/media/items/abc123.webp", "png", "abc123.png"},
		{"query string stripped", "http://x/a/img.webp?width=512", "png", "img.png"},
		{"segment without extension", "http://x/a/img", "png", "img.png"},
		{"dotted extension accepted", "http://x/a/img.webp", ".png", "img.png"},
		{"empty segment falls back", "http://x/a/", "png", "asset.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssetFileName(tt.url, tt.ext); got != tt.expected {
				t.Errorf("AssetFileName() = %q, want %q", got, tt.expected)
			}
		})
	}
}
