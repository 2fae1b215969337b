package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/ipv4"
)

// IPCount is a distinct address and how often it occurred.
type IPCount struct {
	IP    string
	Count int
}

// ExtractIPs finds every dotted-quad address in r. Addresses are distinct, in first-seen order.
func ExtractIPs(r io.Reader) ([]IPCount, error) {
	var (
		out   []IPCount
		index = make(map[string]int)
		br    = bufio.NewReader(r)
	)
	for {
		line, err := br.ReadString('\n')
		for _, ip := range ipv4.Pattern.FindAllString(line, -1) {
			if i, ok := index[ip]; ok {
				out[i].Count++
				continue
			}
			index[ip] = len(out)
			out = append(out, IPCount{IP: ip, Count: 1})
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
	}
}
