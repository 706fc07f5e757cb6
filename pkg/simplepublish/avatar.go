package simplepublish

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Avatar raster and storage constants.
const (
	AvatarSize     = 256
	AvatarFileName = "user-avatar.png"
	AvatarMimeType = "image/png"

	// maxAvatarPixels bounds the decoded source image.
	maxAvatarPixels = 64 << 20
)

func (s *service) UploadAvatar(ctx context.Context, file *FilePart) (profile *Profile, err error) {
	defer func() { s.events.OperationFinished(ctx, OpUploadAvatar, "", err) }()

	if file == nil || file.Reader == nil {
		return nil, Validationf("avatar file is required")
	}

	encoded, err := resizeAvatar(file.Reader)
	if err != nil {
		return nil, err
	}

	key := s.prefixes.AvatarKey()
	if err := s.gateway.PutAt(ctx, key, bytes.NewReader(encoded), AvatarMimeType, int64(len(encoded))); err != nil {
		return nil, err
	}

	profile, err = s.store.UpsertProfileAvatar(ctx, key)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "avatar updated", "key", key, "bytes", len(encoded))
	return profile, nil
}

func (s *service) GetProfile(ctx context.Context) (*Profile, error) {
	return s.store.GetProfile(ctx)
}

// resizeAvatar decodes r and returns a AvatarSize square PNG. Non-square
// sources are center-cropped first so the aspect ratio is kept.
func resizeAvatar(r io.Reader) ([]byte, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, Validationf("avatar is not a supported image: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxAvatarPixels {
		return nil, Validationf("avatar dimensions %dx%d are not supported", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, Validationf("avatar is not a supported image: %v", err)
	}

	resized := resize.Resize(AvatarSize, AvatarSize, centerSquare(img), resize.Lanczos3)

	var out bytes.Buffer
	if err := png.Encode(&out, resized); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return out.Bytes(), nil
}

// centerSquare crops img to the largest centered square.
func centerSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if b.Dx() == b.Dy() {
		return img
	}
	cropper, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return img
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return cropper.SubImage(image.Rect(x0, y0, x0+side, y0+side))
}
