package sigengine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// keccak256 is the single hashing primitive the engine uses, wired to
// go-ethereum's implementation (spec §4.3, §6: every digest in this
// system is a keccak256 hash, matching Ethereum's own hash function).
func keccak256(data []byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(data))
}

// maxUint256Expiry is the EIP-712 numeric encoding this implementation
// uses for a delegation's "never" expiry. The wire format allows a
// non-numeric literal "never", but the typed-data schema (spec §6) fixes
// "expires" as uint256 — there is no room for a string sentinel in the
// struct hash. Using the maximum uint256 value mirrors the common
// ERC-20 "infinite allowance" convention and keeps the digest a pure
// function of the already-parsed Expires value.
var maxUint256Expiry = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var (
	domainTypeHashRPC = keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	domainTypeHashDelegate = keccak256([]byte(
		"EIP712Domain(string name,string version)",
	))
	requestTypeHash = keccak256([]byte(
		"Request(uint256 version,string method,uint256 timestamp,string nonce,uint256 chainId,address contract,string file,string data,string options)",
	))
	delegationTypeHash = keccak256([]byte(
		"Delegation(uint256 version,address delegate,uint256 expires,Permission[] permissions)" +
			"Permission(string type,uint256 chain,address contract,string provider)",
	))
	permissionTypeHash = keccak256([]byte(
		"Permission(string type,uint256 chain,address contract,string provider)",
	))
)

const domainName = "BubbleProtocol"
const domainVersion = "1.0"

func pad32(n uint64) [32]byte {
	return padBig(new(big.Int).SetUint64(n))
}

func padBig(n *big.Int) [32]byte {
	var out [32]byte
	b := n.Bytes()
	copy(out[32-len(b):], b)
	return out
}

func addrPad(addr string) [32]byte {
	var out [32]byte
	a := common.HexToAddress(addr)
	copy(out[12:], a.Bytes())
	return out
}

func concat(parts ...[32]byte) []byte {
	out := make([]byte, 0, 32*len(parts))
	for _, p := range parts {
		out = append(out, p[:]...)
	}
	return out
}

func domainSeparatorRPC(chainID uint64) [32]byte {
	enc := concat(
		domainTypeHashRPC,
		keccak256([]byte(domainName)),
		keccak256([]byte(domainVersion)),
		pad32(chainID),
	)
	return keccak256(enc)
}

func domainSeparatorDelegate() [32]byte {
	enc := concat(
		domainTypeHashDelegate,
		keccak256([]byte(domainName)),
		keccak256([]byte(domainVersion)),
	)
	return keccak256(enc)
}

func eip712RequestDigest(f RequestFields) [32]byte {
	structHash := keccak256(concat(
		requestTypeHash,
		pad32(f.Version),
		keccak256([]byte(f.Method)),
		pad32(f.Timestamp),
		keccak256([]byte(f.Nonce)),
		pad32(f.ChainID),
		addrPad(f.Contract),
		keccak256([]byte(f.File)),
		keccak256([]byte(f.Data)),
		keccak256([]byte(f.Options)),
	))
	domain := domainSeparatorRPC(f.ChainID)
	return keccak256(append([]byte{0x19, 0x01}, concat(domain, structHash)...))
}

func eip712DelegationDigest(f DelegationFields) [32]byte {
	expires := maxUint256Expiry
	if !f.Never {
		expires = new(big.Int).SetInt64(f.ExpiresAt)
	}

	permHashes := make([]byte, 0, 32*len(f.Permissions))
	for _, p := range f.Permissions {
		ph := keccak256(concat(
			permissionTypeHash,
			keccak256([]byte(p.Type)),
			pad32(p.Chain),
			addrPad(p.Contract),
			keccak256([]byte(p.Provider)),
		))
		permHashes = append(permHashes, ph[:]...)
	}
	permsArrayHash := keccak256(permHashes)

	structHash := keccak256(concat(
		delegationTypeHash,
		pad32(f.Version),
		addrPad(f.Delegate),
		padBig(expires),
		permsArrayHash,
	))
	domain := domainSeparatorDelegate()
	return keccak256(append([]byte{0x19, 0x01}, concat(domain, structHash)...))
}
