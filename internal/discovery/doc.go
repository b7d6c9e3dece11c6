// Package discovery finds speakers on the local network.
//
// Speakers serve a UPnP control API on TCP port 1400. Discovery sweeps every
// host of the private IPv4 networks attached to this machine, checks whether
// the port is open, and asks anything that answers who it is.
//
// # Discovery Process
//
//  1. Enumerate networks from the host interfaces (FindNetworks), or use the
//     networks given by the caller
//  2. Optionally browse mDNS for "_sonos._tcp" responders to seed the list
//  3. Probe every candidate with a TCP connect (TCPProber)
//  4. Identify open addresses over HTTP (SpeakerIdentifier)
//  5. Complete each household from its topology (Reconciler)
//
// Steps 3 and 4 run on a bounded pool of workers. Scan returns only after all
// workers have finished.
//
// # Usage Example
//
//	scanner := discovery.NewScanner(discovery.WithWorkers(128))
//	result, err := scanner.Discover(ctx)
//	if err != nil && !errors.Is(err, discovery.ErrNoCandidates) {
//	    return err
//	}
//	for _, d := range result.Devices() {
//	    fmt.Println(d.String())
//	}
//
// # Network Requirements
//
// - Only private IPv4 ranges are swept
// - Speakers must be reachable on TCP port 1400
// - mDNS needs multicast on UDP port 5353 and is optional
package discovery
