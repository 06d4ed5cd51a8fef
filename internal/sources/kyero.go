package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
)

// Kyero's markup has shifted between "article.property" cards and bare
// property links over time; try the specific shapes before the generic ones.
var (
	kyeroCardSelectors = []string{
		"article.property", ".propertyItem", ".resultItem", "article",
	}
	kyeroTitleSelectors = []string{"h2", ".title", ".property-title"}
	kyeroPriceSelectors = []string{
		".price", ".property-price", ".card-price", ".priceLarge",
	}
	kyeroAddressSelectors = []string{
		".location", ".property-location", ".address", ".card-location",
	}
	kyeroDescSelectors = []string{
		".description", ".prop-description", ".card-text",
	}
)

// KyeroAdapter scrapes the Kyero listing portal.
type KyeroAdapter struct {
	name     string
	startURL string
	client   *Client
	logger   *logrus.Logger
}

// NewKyeroAdapter builds a Kyero portal adapter.
func NewKyeroAdapter(name, startURL string, client *Client, logger *logrus.Logger) *KyeroAdapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &KyeroAdapter{name: name, startURL: startURL, client: client, logger: logger}
}

// Name implements Adapter.
func (k *KyeroAdapter) Name() string { return k.name }

// FetchPage implements Adapter.
func (k *KyeroAdapter) FetchPage(ctx context.Context, page int) ([]models.RawListing, error) {
	html, err := k.client.Get(ctx, pageURL(k.startURL, page))
	if err != nil {
		return nil, err
	}
	return k.parseList(html), nil
}

func (k *KyeroAdapter) parseList(html string) []models.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		k.logger.WithError(err).WithField("source", k.name).Error("Failed to parse page")
		return nil
	}

	cards := findCards(doc, kyeroCardSelectors)
	if cards.Length() == 0 {
		cards = doc.Find("a[href*='/property/']")
	}

	var items []models.RawListing
	cards.Each(func(_ int, card *goquery.Selection) {
		item := models.RawListing{
			Title:       firstText(card, kyeroTitleSelectors),
			PriceText:   firstText(card, kyeroPriceSelectors),
			Address:     firstText(card, kyeroAddressSelectors),
			Description: firstText(card, kyeroDescSelectors),
		}
		if item.Title == "" {
			item.Title = cleanText(card.Find("a[href]").First().Text())
		}
		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			item.Link = absoluteLink(k.startURL, href)
		}
		if item.Title == "" && item.Link == "" {
			return
		}
		items = append(items, item)
	})
	return items
}
