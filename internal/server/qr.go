package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRText renders url as a terminal QR code, for opening the feed on a phone.
func QRText(url string) (string, error) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}

func (s *Server) qr(c *fiber.Ctx) error {
	png, err := qrcode.Encode(s.opts.PublicURL, qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error(module, "QR encode failed", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
