package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/model"
)

// spreadsheetExt matches spreadsheet file targets both in bare hrefs and
// inside raw HTML, where the extension is followed by a quote or bracket.
var spreadsheetExt = regexp.MustCompile(`(?i)\.(xlsx|xls|csv)(["'?#>\s]|$)`)

// BrowserOptions configures the headless download session.
type BrowserOptions struct {
	DownloadDir  string
	Headless     bool
	DownloadWait time.Duration
}

// BrowserAdapter drives a headless browser against a portal page that only
// exposes its permit spreadsheet behind a download link. The browser
// session is scoped to a single invocation and always closed.
type BrowserAdapter struct {
	desc   model.DataSource
	client *fetcher.Client
	opts   BrowserOptions
}

// NewBrowser creates an adapter for a browser-automated download source.
func NewBrowser(desc model.DataSource, client *fetcher.Client, opts BrowserOptions) *BrowserAdapter {
	if opts.DownloadDir == "" {
		opts.DownloadDir = "downloads"
	}
	if opts.DownloadWait <= 0 {
		opts.DownloadWait = 90 * time.Second
	}
	return &BrowserAdapter{desc: desc, client: client, opts: opts}
}

func (a *BrowserAdapter) Descriptor() model.DataSource { return a.desc }

// anchorInfo is the subset of an anchor element the link chooser needs.
type anchorInfo struct {
	href  string
	text  string
	index int
}

// pickAnchor selects the spreadsheet link to click: the first anchor whose
// text or target matches pattern, else the first spreadsheet anchor at all.
// Returns -1 when the page has no spreadsheet links.
func pickAnchor(anchors []anchorInfo, pattern string) int {
	candidates := make([]anchorInfo, 0, len(anchors))
	for _, an := range anchors {
		if spreadsheetExt.MatchString(an.href) {
			candidates = append(candidates, an)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	if pattern != "" {
		re, err := regexp.Compile("(?i)" + pattern)
		if err == nil {
			for _, an := range candidates {
				if re.MatchString(an.text) || re.MatchString(an.href) {
					return an.index
				}
			}
		}
	}
	return candidates[0].index
}

// Fetch downloads the spreadsheet and parses its rows into permit records
// keyed by the header row.
func (a *BrowserAdapter) Fetch(ctx context.Context, limit int) ([]model.PermitRecord, error) {
	path, err := a.download(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: parse spreadsheet"))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	var records []model.PermitRecord
	for _, row := range rows[1:] {
		if limit > 0 && len(records) >= limit {
			break
		}
		rec := make(model.PermitRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// download drives the headless session: navigate, locate the spreadsheet
// anchor, click, wait for the download event, and persist the file under
// its server-suggested filename.
func (a *BrowserAdapter) download(ctx context.Context) (string, error) {
	log := zap.L().With(zap.String("component", "source.browser"), zap.String("source", a.desc.Key))

	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout()+a.opts.DownloadWait)
	defer cancel()

	if err := os.MkdirAll(a.opts.DownloadDir, 0o755); err != nil {
		return "", eris.Wrap(err, "browser: create download dir")
	}

	controlURL, err := launcher.New().Headless(a.opts.Headless).Launch()
	if err != nil {
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: launch"))
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: connect"))
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warn("browser close failed", zap.Error(err))
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: a.desc.URL})
	if err != nil {
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: open page"))
	}
	if err := page.WaitLoad(); err != nil {
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: wait load"))
	}

	elements, err := page.Elements("a[href]")
	if err != nil {
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: list anchors"))
	}

	anchors := make([]anchorInfo, 0, len(elements))
	for i, el := range elements {
		href, err := el.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		text, _ := el.Text()
		anchors = append(anchors, anchorInfo{href: *href, text: strings.TrimSpace(text), index: i})
	}

	idx := pickAnchor(anchors, a.desc.LinkPattern)
	if idx < 0 {
		return "", Unavailable(a.desc.Key, 0, eris.Errorf("browser: no spreadsheet link on %s", a.desc.URL))
	}

	wait := browser.WaitDownload(a.opts.DownloadDir)

	if err := elements[idx].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(err, "browser: click download link"))
	}

	infoCh := make(chan *proto.PageDownloadWillBegin, 1)
	go func() { infoCh <- wait() }()

	var info *proto.PageDownloadWillBegin
	timer := time.NewTimer(a.opts.DownloadWait)
	defer timer.Stop()
	select {
	case info = <-infoCh:
	case <-timer.C:
		return "", Unavailable(a.desc.Key, 0, eris.Errorf("browser: download did not start within %s", a.opts.DownloadWait))
	case <-ctx.Done():
		return "", Unavailable(a.desc.Key, 0, eris.Wrap(ctx.Err(), "browser: download wait"))
	}
	if info == nil {
		return "", Unavailable(a.desc.Key, 0, eris.New("browser: download event missing"))
	}

	src := filepath.Join(a.opts.DownloadDir, info.GUID)
	name := info.SuggestedFilename
	if name == "" {
		name = info.GUID + ".xlsx"
	}
	dst := filepath.Join(a.opts.DownloadDir, name)
	if err := os.Rename(src, dst); err != nil {
		return "", eris.Wrapf(err, "browser: move download to %s", dst)
	}

	log.Info("spreadsheet downloaded", zap.String("file", dst))
	return dst, nil
}

// Probe checks the portal page over plain HTTP and counts spreadsheet
// links; full browser automation is reserved for ingestion.
func (a *BrowserAdapter) Probe(ctx context.Context) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	resp, err := a.client.Get(ctx, a.desc.URL, nil)
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	result := &ProbeResult{StatusCode: resp.StatusCode, Records: -1}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		result.Degraded = true
		return result, nil
	}
	links := len(spreadsheetExt.FindAllString(string(body), -1))
	if links == 0 {
		// Page loads but the download link is gone; ingestion would fail.
		result.Degraded = true
	}
	result.Metadata = map[string]string{"spreadsheet_links": strconv.Itoa(links)}
	return result, nil
}
