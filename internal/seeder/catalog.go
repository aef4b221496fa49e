package seeder

import (
	"math/rand/v2"

	"shopsphere/internal/environment"
)

// Product is a storefront item used by synthetic journeys.
type Product struct {
	ID         string
	Name       string
	CategoryID string
	Price      float64
}

// Category groups products.
type Category struct {
	ID   string
	Name string
}

var Categories = []Category{
	{ID: "cat-kitchen", Name: "Kitchen"},
	{ID: "cat-lighting", Name: "Lighting"},
	{ID: "cat-office", Name: "Office"},
	{ID: "cat-outdoor", Name: "Outdoor"},
}

var Products = []Product{
	{ID: "prod-mug", Name: "Stoneware Mug", CategoryID: "cat-kitchen", Price: 14.5},
	{ID: "prod-kettle", Name: "Gooseneck Kettle", CategoryID: "cat-kitchen", Price: 69},
	{ID: "prod-knife", Name: "Chef Knife", CategoryID: "cat-kitchen", Price: 89.9},
	{ID: "prod-lamp", Name: "Brass Desk Lamp", CategoryID: "cat-lighting", Price: 120},
	{ID: "prod-pendant", Name: "Linen Pendant", CategoryID: "cat-lighting", Price: 85},
	{ID: "prod-desk", Name: "Oak Standing Desk", CategoryID: "cat-office", Price: 540},
	{ID: "prod-chair", Name: "Task Chair", CategoryID: "cat-office", Price: 310},
	{ID: "prod-notebook", Name: "Dot Grid Notebook", CategoryID: "cat-office", Price: 12},
	{ID: "prod-hammock", Name: "Canvas Hammock", CategoryID: "cat-outdoor", Price: 75},
	{ID: "prod-lantern", Name: "Solar Lantern", CategoryID: "cat-outdoor", Price: 32},
}

func productsIn(categoryID string) []Product {
	var out []Product
	for _, p := range Products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

// Shopper devices: user agent and screen size.
var devices = []struct {
	userAgent string
	platform  string
	width     int
	height    int
}{
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", "Win32", 1920, 1080},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15", "MacIntel", 1440, 900},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0", "MacIntel", 1680, 1050},
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91", "Win32", 1366, 768},
	{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", "iPhone", 390, 844},
	{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", "Linux armv8l", 412, 915},
	{"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", "iPad", 820, 1180},
}

// Landing pages and the referrers that lead to them.
var landings = []struct {
	url      string
	referrer string
}{
	{"https://shop.example.com/", ""},
	{"https://shop.example.com/", "https://www.google.com/search?q=oak+desk"},
	{"https://shop.example.com/", "https://www.bing.com/"},
	{"https://shop.example.com/", "https://www.facebook.com/"},
	{"https://shop.example.com/", "https://t.co/abc123"},
	{"https://shop.example.com/", "https://mail.google.com/"},
	{"https://shop.example.com/", "https://designblog.example.org/best-lamps"},
	{"https://shop.example.com/?utm_source=newsletter&utm_medium=email&utm_campaign=spring_sale", ""},
	{"https://shop.example.com/?utm_source=google&utm_medium=cpc&utm_campaign=desks&utm_term=standing+desk", "https://www.google.com/"},
}

var searches = []string{"lamp", "desk", "mug", "outdoor", "chair", "gift"}

var sharePlatforms = []string{"facebook", "twitter", "pinterest", "email"}

// Public addresses from the documentation ranges.
var addresses = []string{
	"203.0.113.10", "203.0.113.45", "198.51.100.7", "198.51.100.99", "192.0.2.33",
}

var countries = []string{"us", "us", "de", "gb", "fr", "es", "ca", "br", "jp"}

// RandomEnvironment picks a device and a landing page for one visit.
func RandomEnvironment(rng *rand.Rand) environment.Environment {
	device := devices[rng.IntN(len(devices))]
	landing := landings[rng.IntN(len(landings))]
	return environment.Environment{
		UserAgent:    device.userAgent,
		Platform:     device.platform,
		URL:          landing.url,
		Referrer:     landing.referrer,
		ScreenWidth:  device.width,
		ScreenHeight: device.height,
	}
}
