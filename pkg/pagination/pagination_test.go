package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=10&offset=5", 10, 5},
		{"limit=-3", DefaultLimit, 0},
		{"limit=9999", MaxLimit, 0},
		{"offset=-1", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := paramsFor(t, tc.query)
		if p.Limit != tc.wantLimit || p.Offset != tc.wantOffset {
			t.Errorf("%q: got %+v, want limit %d offset %d", tc.query, p, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestWindow(t *testing.T) {
	p := Params{Limit: 10, Offset: 95}
	start, end := p.Window(100)
	if start != 95 || end != 100 {
		t.Errorf("window = [%d,%d), want [95,100)", start, end)
	}
	start, end = Params{Limit: 10, Offset: 200}.Window(100)
	if start != 100 || end != 100 {
		t.Errorf("out-of-range window = [%d,%d), want empty", start, end)
	}
}

func TestResponseHasMore(t *testing.T) {
	if r := NewResponse(nil, 100, 10, 80); !r.HasMore {
		t.Error("page before the end should have more")
	}
	if r := NewResponse(nil, 100, 10, 90); r.HasMore {
		t.Error("last page should not have more")
	}
}
