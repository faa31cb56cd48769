package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP determines the originating client address behind Cloudflare or
// another proxy. It keys the API rate limiter.
func ClientIP(c *fiber.Ctx) string {
	// 1. Cloudflare puts the original client IP in its own header
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	// 2. X-Forwarded-For can contain a list of IPs, the first one is the client
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}

	// 3. No proxy headers, use the peer address. IPv4-mapped IPv6 (::ffff:1.2.3.4)
	// is reported as plain IPv4.
	ipAddr := c.IP()
	if strings.HasPrefix(ipAddr, "::ffff:") && strings.Contains(ipAddr, ".") {
		return strings.TrimPrefix(ipAddr, "::ffff:")
	}
	return ipAddr
}
