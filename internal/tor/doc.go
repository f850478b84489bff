// Package tor routes gallery browsing through the Tor network.
//
// Connect either starts a private daemon with tornago or checks an
// external SOCKS5 proxy, and returns a Client. The static surface takes
// Client.HTTPClient and the Chrome surface takes Client.ProxyURL, so
// neither the gallery sites nor the network see the reader's address.
//
//	client, err := tor.Connect(ctx, tor.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package tor
