package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes d as plain-text tables. Failed panels print their error in
// place of the table.
func Render(w io.Writer, d *Dashboard, products *Sorter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "ShopSphere analytics %s to %s\n\n", d.Range.StartDate, d.Range.EndDate)

	section(tw, "Products")
	if d.Products.Failed() {
		failed(tw, d.Products.Err)
	} else if len(d.Products.Data) == 0 {
		fmt.Fprintln(tw, "No data")
	} else {
		fmt.Fprintln(tw, "Product\tClicks\tViews\tCarts\tPurchases\tRevenue\tAvg time\tConversion")
		for _, p := range Sort(products, d.Products.Data, ProductFields) {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.2f\t%s\t%.2f%%\n",
				p.ProductName, p.Clicks, p.Views, p.AddToCarts, p.Purchases,
				p.Revenue, FormatDuration(p.AvgTimeSpent), p.ConversionRate)
		}
	}

	section(tw, "Categories")
	if d.Categories.Failed() {
		failed(tw, d.Categories.Err)
	} else if len(d.Categories.Data) == 0 {
		fmt.Fprintln(tw, "No data")
	} else {
		fmt.Fprintln(tw, "Category\tViews\tVisitors\tAvg time\tBounce\tEngagement")
		for _, c := range d.Categories.Data {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.2f%%\t%.2f%%\n",
				c.CategoryName, c.Views, c.UniqueVisitors,
				FormatDuration(c.AvgTimeSpent), c.BounceRate, c.EngagementRate)
		}
	}

	section(tw, "Checkout funnel")
	if d.Funnel.Failed() {
		failed(tw, d.Funnel.Err)
	} else {
		f := d.Funnel.Data
		for _, s := range f.Steps {
			fmt.Fprintf(tw, "%s\t%d\t%d%%\t%s\n", s.Label, s.Count, s.Percentage, bar(s.Percentage))
		}
		fmt.Fprintf(tw, "Checkout conversion\t%.2f%%\n", f.CheckoutConversionRate)
		fmt.Fprintf(tw, "Purchase conversion\t%.2f%%\n", f.PurchaseConversionRate)
		fmt.Fprintf(tw, "Average order value\t%.2f\n", f.AverageOrderValue)
	}

	section(tw, "Traffic")
	if d.Traffic.Failed() {
		failed(tw, d.Traffic.Err)
	} else {
		t := d.Traffic.Data
		writeSlices(tw, "Devices", t.Devices)
		writeSlices(tw, "Browsers", t.Browsers)
		writeSlices(tw, "Sources", t.Sources)
		writeSlices(tw, "Referrers", t.Referrers)
		writeSlices(tw, "Countries", t.Countries)
	}

	return tw.Flush()
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s ==\n", title)
}

func failed(w io.Writer, err error) {
	fmt.Fprintf(w, "Error loading panel: %v\n", err)
}

func writeSlices(w io.Writer, title string, rows []Slice) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(rows) == 0 {
		fmt.Fprintln(w, "  No data")
		return
	}
	for _, s := range rows {
		fmt.Fprintf(w, "  %s\t%d\t%d%%\t%s\n", s.Label, s.Count, s.Percentage, bar(s.Percentage))
	}
}

func bar(pct int) string {
	return strings.Repeat("#", max(0, min(pct, 100))/5)
}
