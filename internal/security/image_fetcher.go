package security

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxImageSize はプロフィール画像の最大サイズ。
const DefaultMaxImageSize = 2 << 20

// ImageFetcher はSSRF防止付きクライアントで画像を取得する。
type ImageFetcher struct {
	client   *http.Client
	validate func(rawURL string) error
	maxSize  int64
}

// NewImageFetcher はImageFetcherを生成する。
func NewImageFetcher(guard SSRFGuardService, timeout time.Duration) *ImageFetcher {
	return &ImageFetcher{
		client:   guard.NewSafeClient(timeout),
		validate: guard.ValidateURL,
		maxSize:  DefaultMaxImageSize,
	}
}

// FetchImage は画像を取得する。
// 画像以外のContent-Typeや上限サイズを超える応答はエラーとする。
func (f *ImageFetcher) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.validate(rawURL); err != nil {
		return nil, fmt.Errorf("unsafe image URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxSize)
	}
	return data, nil
}
