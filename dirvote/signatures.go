package dirvote

import (
	"fmt"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/certstore"
	"go.uber.org/multierr"
)

// CheckConsensusSignatures validates every voter slot of a consensus
// against the given certificate store. It returns the number of slots with
// a good signature; failures of individual slots are combined into the
// returned error and do not stop the remaining slots from being checked.
func CheckConsensusSignatures(ns *tor.NetworkStatus, certs *certstore.Store) (good int, err error) {
	for _, voter := range ns.Voters {
		cert, ok := certs.BySigningKey(voter.SigningKeyDigest)
		if !ok {
			cert, _ = certs.ByIdentity(voter.Identity)
		}
		if cerr := ns.CheckVoterSignature(voter, cert); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("voter %s (%s): %w", voter.Nickname, voter.Identity, cerr))
			continue
		}
		good++
	}
	return good, err
}
