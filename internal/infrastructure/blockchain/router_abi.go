package blockchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// selector returns the first four bytes of keccak256(signature), matching
// GetTokenBalance's existing manual calldata style rather than pulling in
// abi.ABI's JSON-based parser for a handful of fixed function shapes.
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EncodeERC20Transfer builds calldata for transfer(address,uint256).
func EncodeERC20Transfer(to common.Address, amount *big.Int) []byte {
	data := selector("transfer(address,uint256)")
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// EncodeERC20Approve builds calldata for approve(address,uint256).
func EncodeERC20Approve(spender common.Address, amount *big.Int) []byte {
	data := selector("approve(address,uint256)")
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// EncodeERC20Allowance builds calldata for allowance(address,address).
func EncodeERC20Allowance(owner, spender common.Address) []byte {
	data := selector("allowance(address,address)")
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
	return data
}

// packAddressArray ABI-encodes a dynamic address[] tail: a length word
// followed by each element left-padded to 32 bytes.
func packAddressArray(addrs []common.Address) []byte {
	out := common.LeftPadBytes(big.NewInt(int64(len(addrs))).Bytes(), 32)
	for _, a := range addrs {
		out = append(out, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	return out
}

// packUint256Array ABI-encodes a dynamic uint256[] tail.
func packUint256Array(vals []*big.Int) []byte {
	out := common.LeftPadBytes(big.NewInt(int64(len(vals))).Bytes(), 32)
	for _, v := range vals {
		out = append(out, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return out
}

// EncodeRouterTransfers builds calldata for OrbiterRouterV3's payable
// transfers(address[] tos, uint256[] values) batch native-token payout
// (spec §4.3, §4.4).
func EncodeRouterTransfers(tos []common.Address, values []*big.Int) []byte {
	data := selector("transfers(address[],uint256[])")

	tosTail := packAddressArray(tos)
	offsetTos := int64(64) // two head words
	offsetValues := offsetTos + int64(len(tosTail))

	data = append(data, common.LeftPadBytes(big.NewInt(offsetTos).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(offsetValues).Bytes(), 32)...)
	data = append(data, tosTail...)
	data = append(data, packUint256Array(values)...)
	return data
}

// EncodeRouterTransferTokens builds calldata for OrbiterRouterV3's
// transferTokens(address token, address[] tos, uint256[] values) batch
// ERC-20 payout.
func EncodeRouterTransferTokens(token common.Address, tos []common.Address, values []*big.Int) []byte {
	data := selector("transferTokens(address,address[],uint256[])")

	tosTail := packAddressArray(tos)
	offsetTos := int64(96) // three head words
	offsetValues := offsetTos + int64(len(tosTail))

	data = append(data, common.LeftPadBytes(token.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(offsetTos).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(offsetValues).Bytes(), 32)...)
	data = append(data, tosTail...)
	data = append(data, packUint256Array(values)...)
	return data
}
