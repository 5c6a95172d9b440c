package scrapers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadySelector(t *testing.T) {
	assert.Equal(t, "div.purchase-details:not(.loading)", readySelector("div.purchase-details"))
	assert.Equal(t, "div.x:not(.loading)", readySelector("div.x:not(.loading)"))
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"span[data-id=\"a\"]"`, jsString(`span[data-id="a"]`))
}

func TestNewBrowserDefaults(t *testing.T) {
	b := NewBrowser(&BrowserConfig{InteractionsPerSecond: 2}, nil)
	assert.Equal(t, 5*time.Minute, b.Config.PageTimeout)
	require.NotNil(t, b.limiter)

	b = NewBrowser(&BrowserConfig{PageTimeout: time.Second}, nil)
	assert.Equal(t, time.Second, b.Config.PageTimeout)
	assert.Nil(t, b.limiter)
}

func TestBrowserRequiresInitialize(t *testing.T) {
	b := NewBrowser(&BrowserConfig{}, nil)
	_, err := b.CountOf(context.Background(), "div")
	require.Error(t, err)
	assert.NoError(t, b.Close())
}

func TestNodeRejectsForeignElements(t *testing.T) {
	b := NewBrowser(&BrowserConfig{}, nil)
	_, err := b.node("not a node")
	require.Error(t, err)
}
