// Package browser drives a headless Chrome instance via chromedp to log into
// the chat platform, keep an authenticated session attached to a room, read
// the rendered message list, and post outgoing messages. It is the only
// package that touches the DOM; everything above it works with scrape.Message
// values and typed errors.
package browser
