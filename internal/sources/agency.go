package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
)

// Selector lists tried in priority order. Agencies run a handful of common
// themes, so a generic adapter with these lists covers most of them without
// a per-site parser.
var (
	agencyCardSelectors = []string{
		"article", ".property", ".listing", ".resultItem", ".propertyItem",
		".card", ".item", ".listing-item", ".search-result", ".property-card",
		".property-list-item",
	}
	agencyTitleSelectors = []string{
		"h2", "h3", ".title", ".property-title", ".card-title", ".item-link",
		".listing-title", "a[title]",
	}
	agencyPriceSelectors = []string{
		".price", ".property-price", ".card-price", ".listing-price",
		".precio", ".item-price", ".re-Card-price", ".result-price",
	}
	agencyAddressSelectors = []string{
		".address", ".location", ".property-location", ".card-location",
		".item-location", ".zone",
	}
	agencyDescSelectors = []string{
		".description", ".desc", ".property-description", ".card-text", "p",
	}
)

// AgencyAdapter scrapes a listing site by trying prioritized CSS selector
// lists for cards and their fields. When a card carries no price it can
// follow the card link and look for the price on the detail page.
type AgencyAdapter struct {
	name         string
	startURL     string
	client       *Client
	followDetail bool
	logger       *logrus.Logger
}

// NewAgencyAdapter builds a generic agency adapter with detail-page price
// lookup enabled.
func NewAgencyAdapter(name, startURL string, client *Client, logger *logrus.Logger) *AgencyAdapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &AgencyAdapter{
		name:         name,
		startURL:     startURL,
		client:       client,
		followDetail: true,
		logger:       logger,
	}
}

// Name implements Adapter.
func (a *AgencyAdapter) Name() string { return a.name }

// FetchPage implements Adapter.
func (a *AgencyAdapter) FetchPage(ctx context.Context, page int) ([]models.RawListing, error) {
	html, err := a.client.Get(ctx, pageURL(a.startURL, page))
	if err != nil {
		return nil, err
	}
	return a.parseList(ctx, html), nil
}

func (a *AgencyAdapter) parseList(ctx context.Context, html string) []models.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.logger.WithError(err).WithField("source", a.name).Error("Failed to parse page")
		return nil
	}

	cards := findCards(doc, agencyCardSelectors)
	if cards.Length() == 0 {
		// Some sites render listings as bare anchors.
		cards = doc.Find("a[href]")
	}
	var items []models.RawListing
	cards.Each(func(_ int, card *goquery.Selection) {
		item := a.parseCard(card)
		if item.Title == "" && item.Link == "" {
			return
		}
		if item.PriceText == "" && item.Link != "" && a.followDetail {
			a.fillFromDetailPage(ctx, &item)
		}
		items = append(items, item)
	})
	return items
}

func (a *AgencyAdapter) parseCard(card *goquery.Selection) models.RawListing {
	item := models.RawListing{
		Title:       firstText(card, agencyTitleSelectors),
		PriceText:   firstText(card, agencyPriceSelectors),
		Address:     firstText(card, agencyAddressSelectors),
		Description: firstText(card, agencyDescSelectors),
	}
	if href, ok := card.Find("a[href]").First().Attr("href"); ok {
		item.Link = absoluteLink(a.startURL, href)
	}
	return item
}

// fillFromDetailPage fetches the card's link and pulls price, address and
// description from the detail page when the list card lacked them.
func (a *AgencyAdapter) fillFromDetailPage(ctx context.Context, item *models.RawListing) {
	html, err := a.client.Get(ctx, item.Link)
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"source": a.name,
			"link":   item.Link,
		}).Debug("Detail page fetch failed")
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	root := doc.Selection
	if price := firstText(root, agencyPriceSelectors); price != "" {
		item.PriceText = price
	}
	if addr := firstText(root, agencyAddressSelectors); addr != "" && item.Address == "" {
		item.Address = addr
	}
	if desc := firstText(root, agencyDescSelectors); desc != "" && item.Description == "" {
		item.Description = desc
	}
}

// findCards returns the matches of the first selector that yields any
// nodes, or an empty selection.
func findCards(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return doc.Find(selectors[0])
}

// firstText returns the trimmed text of the first selector that matches.
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if el := s.Find(sel).First(); el.Length() > 0 {
			if text := cleanText(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// cleanText collapses the whitespace runs goquery leaves behind when a node
// spans multiple HTML elements.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
