// Package trustsdk is the client for the HostDeck dashboard trust layer.
//
// It implements the two protocols every dashboard frontend must speak:
//
//   - the signed/encrypted privileged-request protocol: state-changing calls
//     to the privileged API surface carry a freshly fetched per-path
//     anti-forgery token, a time-bound signature derived from it, and (for
//     identity-management writes) an AES-GCM encrypted body. Token staleness
//     self-heals through the TokenStore; loss of privilege is broadcast
//     through the RevocationBus so interested code never has to poll.
//
//   - the reward-ad anti-fraud flow: the Coordinator obtains a one-time
//     session (nonce + ticket), renders an ad through a provider strategy,
//     measures foreground watch time honestly via WatchTimeWatcher, and
//     redeems the session server-side. A server-measured strategy exists for
//     networks where completion is only known to the backend.
//
// All shared state (token cache, revocation latch) lives on explicitly
// constructed SDKClient instances so tests can run isolated clients side by
// side.
package trustsdk
