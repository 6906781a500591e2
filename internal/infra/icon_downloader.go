package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"market_voice/internal/domain"

	"github.com/disintegration/imaging"
)

// IconDownloader fetches and caches currency icons shown next to each
// pair on the dashboard page. Icons are keyed by the pair's base
// currency (USDJPY -> usd).
type IconDownloader struct {
	basePath string
	client   *http.Client
}

// NewIconDownloader creates a new IconDownloader
func NewIconDownloader() (*IconDownloader, error) {
	path, err := getAssetsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assets path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconDownloader{
		basePath: path,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon downloads the base-currency icon for a pair if it isn't
// cached yet and returns the local file path. Images are resized to
// 24x24 pixels for consistent dashboard display.
func (d *IconDownloader) DownloadIcon(symbol string) (string, error) {
	safeSymbol := sanitizeSymbol(symbol)
	if len(safeSymbol) < 3 {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidSymbol, symbol)
	}
	currency := strings.ToLower(safeSymbol[:3])

	fileName := currency + ".png"
	filePath := filepath.Join(d.basePath, fileName)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	url := fmt.Sprintf("https://wise.com/public-resources/assets/flags/rectangle/%s.png", currency)

	resp, err := d.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	resizedImg := imaging.Resize(srcImg, 24, 24, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// GetIconPath returns the local path for a pair's base-currency icon.
func (d *IconDownloader) GetIconPath(symbol string) string {
	safeSymbol := sanitizeSymbol(symbol)
	if len(safeSymbol) < 3 {
		return ""
	}
	return filepath.Join(d.basePath, strings.ToLower(safeSymbol[:3])+".png")
}

// BasePath returns the icon cache directory, served by the web server.
func (d *IconDownloader) BasePath() string {
	return d.basePath
}

func getAssetsPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MarketVoice", "assets", "icons"), nil
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
