package portal

import (
	"fmt"
	"io"
	"net/url"
)

// Display receives the HTML fragment that embeds a run's live view.
type Display interface {
	ShowHTML(fragment string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(fragment string)

func (f DisplayFunc) ShowHTML(fragment string) { f(fragment) }

// WriterDisplay prints each fragment on its own line.
func WriterDisplay(w io.Writer) Display {
	return DisplayFunc(func(fragment string) {
		_, _ = fmt.Fprintln(w, fragment)
	})
}

type discardDisplay struct{}

func (discardDisplay) ShowHTML(string) {}

// EmbedHTML returns the iframe fragment that shows run in the portal's
// embedded viewer.
func (c *Client) EmbedHTML(run *Run) string {
	src := fmt.Sprintf("%s/runs/%s?embedded=true", c.baseURL, url.PathEscape(run.ID.String()))
	return fmt.Sprintf(`<iframe src="%s" width=1200px height=900px></iframe>`, src)
}

// ShowRun sends the embedded viewer fragment for run to the display.
func (c *Client) ShowRun(run *Run) {
	c.display.ShowHTML(c.EmbedHTML(run))
}
