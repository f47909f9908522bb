// Command wiregate serves and fetches over HTTP/1.x.
package main

import "github.com/Sentinel-Gate/wiregate/cmd/wiregate/cmd"

func main() {
	cmd.Execute()
}
