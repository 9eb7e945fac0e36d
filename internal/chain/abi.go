package chain

// MintContractABI covers the calls the runner needs from the allowlisted mint contract.
const MintContractABI = `[
	{"inputs":[],"name":"mint","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"allowlist","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"dailyLimit","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"mintedToday","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const (
	methodMint        = "mint"
	methodAllowlist   = "allowlist"
	methodDailyLimit  = "dailyLimit"
	methodMintedToday = "mintedToday"
)
