// Package shoutcast provides ICY/Shoutcast stream reading with metadata stripping and playlist resolution.
//
// It started as a fork of github.com/romantomjak/shoutcast and is extended for live listening:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - Correct metadata stripping: ICY metadata blocks are decoded and skipped so only audio bytes are returned
//   - Streams without icy-metaint are passed through untouched
//   - Metadata text is decoded as ISO-8859-1, which is what Shoutcast servers send
package shoutcast
