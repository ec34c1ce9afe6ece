// Package notifications delivers run progress to the user.
//
// A Sink accepts an Update and returns a Token; passing that token back on the
// next Update for the same run replaces the earlier notification in place
// instead of stacking a new one. Implementations cover desktop notifications
// (notify-send with the synchronous replace hint), a single-line console
// meter for interactive terminals, and ntfy for terminal run outcomes.
// NewSink assembles whichever of these the config enables behind a fan-out.
package notifications
