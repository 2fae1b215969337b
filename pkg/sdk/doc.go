// Package ipwarehouse embeds the IP warehouse in a Go program: documents are
// stored in deduplicated per-category logs under a directory and queried with
// the pipelined search language.
//
//	client, _ := ipwarehouse.New("data")
//	stats, _ := client.Load(ctx, "geoip", []byte(`[{"ip":"8.8.8.8","country_code":"US"}]`))
//
//	rows, _ := client.Query(ctx, `search index=geoip country_code=US | fields ip`)
//	for _, r := range rows {
//	    fmt.Println(r.Text)
//	}
//
// Categories geoip (keyed by ip), rdap (keyed by handle) and ip_rdap (keyed by
// ip and handle) are registered by default; WithCategory adds more.
package ipwarehouse
