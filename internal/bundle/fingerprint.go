package bundle

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cbergoon/merkletree"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Fingerprint identifies the exact bundle set a process runs with.
type Fingerprint struct {
	Root    string            // merkle root over every bundle
	Bundles map[string]string // bundle name -> content hash
}

// sourceContent implements merkletree.Content for one bundle.
type sourceContent struct {
	name string
	hash string
}

func (s sourceContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(s.name + ":" + s.hash))
	return h[:], nil
}

func (s sourceContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(sourceContent)
	if !ok {
		return false, nil
	}
	return s.name == o.name && s.hash == o.hash, nil
}

// Fingerprint hashes every bundle in name order and builds a merkle tree
// over the results, so two processes agree on the root only when they
// load identical sources.
func (r *Registry) Fingerprint() (*Fingerprint, error) {
	fp := &Fingerprint{Bundles: make(map[string]string, len(r.names))}
	if len(r.names) == 0 {
		fp.Root = emptyHash()
		return fp, nil
	}

	contents := make([]merkletree.Content, 0, len(r.names))
	for _, name := range r.names {
		h := sha256.New()
		for _, src := range r.bundles[name] {
			h.Write([]byte(src.Name))
			h.Write([]byte{0})
			h.Write([]byte(src.Text))
			h.Write([]byte{0})
		}
		sum := hex.EncodeToString(h.Sum(nil))
		fp.Bundles[name] = sum
		contents = append(contents, sourceContent{name: name, hash: sum})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrInternal, err, "failed to build merkle tree")
	}
	fp.Root = hex.EncodeToString(tree.MerkleRoot())
	return fp, nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return hex.EncodeToString(h[:])
}
