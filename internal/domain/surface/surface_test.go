package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanHostPet(t *testing.T) {
	tests := []struct {
		surface Surface
		want    bool
	}{
		{Surface{ID: "page:1", Kind: KindPage, URL: "https://example.com"}, true},
		{Surface{ID: "page:2", Kind: KindPage, URL: "http://localhost:3000/x"}, true},
		{Surface{ID: "page:3", Kind: KindPage, URL: "chrome://extensions"}, false},
		{Surface{ID: "page:4", Kind: KindPage, URL: "CHROME-EXTENSION://abc/popup.html"}, false},
		{Surface{ID: "page:5", Kind: KindPage, URL: "edge://settings"}, false},
		{Surface{ID: "page:6", Kind: KindPage, URL: "moz-extension://abc"}, false},
		{Surface{ID: "page:7", Kind: KindPage, URL: "about:blank"}, false},
		{Surface{ID: "page:8", Kind: KindPage}, false},
		{Surface{Kind: KindPage, URL: "https://example.com"}, false},
		{Surface{ID: "tg:1", Kind: KindTelegram}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.surface.CanHostPet(), "%+v", tt.surface)
	}
}
