package gecko

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
)

type fakeGeckodriver struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]interface{}
}

func (f *fakeGeckodriver) record(r *http.Request) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	var body map[string]interface{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	if f.bodies == nil {
		f.bodies = map[string]map[string]interface{}{}
	}
	f.bodies[r.Method+" "+r.URL.Path] = body
	return body
}

func (f *fakeGeckodriver) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.requests...)
}

func (f *fakeGeckodriver) body(key string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func value(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
}

func wireErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"value": map[string]string{"error": code, "message": code + " happened"}})
}

func newFakeServer(t *testing.T) (*fakeGeckodriver, *httptest.Server) {
	t.Helper()
	f := &fakeGeckodriver{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		value(w, map[string]interface{}{"sessionId": "s1", "capabilities": map[string]interface{}{}})
	})
	mux.HandleFunc("/session/s1/", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		switch r.Method + " " + r.URL.Path {
		case "POST /session/s1/timeouts", "POST /session/s1/window/maximize", "POST /session/s1/window/rect",
			"POST /session/s1/url", "POST /session/s1/element/e1/click", "POST /session/s1/element/e1/value":
			value(w, nil)
		case "GET /session/s1/title":
			value(w, "Shop")
		case "POST /session/s1/element":
			if body["value"] == "#missing" {
				wireErr(w, http.StatusNotFound, "no such element")
				return
			}
			value(w, map[string]string{elementKey: "e1"})
		case "POST /session/s1/element/e2/click":
			wireErr(w, http.StatusBadRequest, "element click intercepted")
		case "GET /session/s1/element/e1/text":
			value(w, "Add to cart")
		case "GET /session/s1/element/e1/displayed":
			value(w, true)
		case "POST /session/s1/execute/sync":
			value(w, 42)
		case "GET /session/s1/alert/text":
			wireErr(w, http.StatusNotFound, "no such alert")
		case "GET /session/s1/screenshot":
			value(w, base64.StdEncoding.EncodeToString([]byte("png-bytes")))
		default:
			wireErr(w, http.StatusNotFound, "unknown command")
		}
	})
	mux.HandleFunc("DELETE /session/s1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		value(w, nil)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities(browser.Options{
		Headless: true,
		Prefs:    map[string]interface{}{"dom.push.enabled": false},
		Binary:   "/opt/firefox/firefox",
	})

	always := caps["capabilities"].(map[string]interface{})["alwaysMatch"].(map[string]interface{})
	assert.Equal(t, "firefox", always["browserName"])

	firefox := always["moz:firefoxOptions"].(map[string]interface{})
	assert.Equal(t, []string{"-headless"}, firefox["args"])
	assert.Equal(t, "/opt/firefox/firefox", firefox["binary"])
	assert.Equal(t, false, firefox["prefs"].(map[string]interface{})["dom.push.enabled"])
}

func TestNew_ConfiguresSession(t *testing.T) {
	fake, server := newFakeServer(t)

	d, err := New(context.Background(), browser.Options{
		RemoteURL:       server.URL,
		ImplicitWait:    10 * time.Second,
		PageLoadTimeout: 30 * time.Second,
		Maximize:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", d.SessionID())

	timeouts := fake.body("POST /session/s1/timeouts")
	assert.Equal(t, float64(10000), timeouts["implicit"])
	assert.Equal(t, float64(30000), timeouts["pageLoad"])
	assert.Contains(t, fake.seen(), "POST /session/s1/window/maximize")
}

func TestDriver_Operations(t *testing.T) {
	fake, server := newFakeServer(t)
	ctx := context.Background()

	d, err := New(ctx, browser.Options{RemoteURL: server.URL, Headless: true})
	require.NoError(t, err)
	assert.Contains(t, fake.seen(), "POST /session/s1/window/rect")

	require.NoError(t, d.Navigate(ctx, "http://shop.local"))
	assert.Equal(t, "http://shop.local", fake.body("POST /session/s1/url")["url"])

	title, err := d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Shop", title)

	el, err := d.FindElement(ctx, browser.ID("add"))
	require.NoError(t, err)
	assert.Equal(t, "css selector", fake.body("POST /session/s1/element")["using"])
	assert.Equal(t, `[id="add"]`, fake.body("POST /session/s1/element")["value"])

	text, err := el.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Add to cart", text)

	shown, err := el.IsDisplayed(ctx)
	require.NoError(t, err)
	assert.True(t, shown)

	require.NoError(t, el.Click(ctx))
	require.NoError(t, el.SendKeys(ctx, "qty"))

	out, err := d.ExecuteScript(ctx, "arguments[0].click();", el)
	require.NoError(t, err)
	assert.Equal(t, float64(42), out)
	args := fake.body("POST /session/s1/execute/sync")["args"].([]interface{})
	assert.Equal(t, map[string]interface{}{elementKey: "e1"}, args[0])

	png, err := d.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), png)

	require.NoError(t, d.Quit(ctx))
	assert.Contains(t, fake.seen(), "DELETE /session/s1")
}

func TestDriver_ErrorMapping(t *testing.T) {
	_, server := newFakeServer(t)
	ctx := context.Background()

	d, err := New(ctx, browser.Options{RemoteURL: server.URL})
	require.NoError(t, err)

	_, err = d.FindElement(ctx, browser.CSS("#missing"))
	assert.ErrorIs(t, err, browser.ErrNoSuchElement)

	_, err = d.AlertText(ctx)
	assert.ErrorIs(t, err, browser.ErrNoAlert)

	blocked := &element{d: d, id: "e2"}
	assert.ErrorIs(t, blocked.Click(ctx), browser.ErrClickIntercepted)
}
