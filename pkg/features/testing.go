package features

// TestingArtifact is a small preprocessing artifact shaped like the one the
// flowguard training notebook exports. It is used by tests across packages.
const TestingArtifact = `{
    "numerical_features": ["orig_pkts", "orig_ip_bytes"],
    "categorical_features": ["proto", "conn_state", "history_bucket"],
    "feature_names_out": [
        "orig_pkts", "orig_ip_bytes",
        "proto_tcp", "proto_udp",
        "conn_state_OTH", "conn_state_REJ", "conn_state_RSTO", "conn_state_RSTOS0",
        "conn_state_RSTR", "conn_state_RSTRH", "conn_state_S0", "conn_state_S1",
        "conn_state_S2", "conn_state_S3", "conn_state_SF", "conn_state_SH", "conn_state_SHR",
        "history_bucket_known_suspicious_combos", "history_bucket_majority_S",
        "history_bucket_pure_benign", "history_bucket_pure_malicious", "history_bucket_rare_mixed"
    ],
    "scaler": {
        "type": "standard",
        "params": {
            "orig_pkts": {"mean": 4, "scale": 2},
            "orig_ip_bytes": {"mean": 300, "scale": 100}
        }
    },
    "encoder": {
        "type": "onehot",
        "categories": {
            "proto": ["tcp", "udp"],
            "conn_state": ["OTH", "REJ", "RSTO", "RSTOS0", "RSTR", "RSTRH", "S0", "S1", "S2", "S3", "SF", "SH", "SHR"],
            "history_bucket": ["known_suspicious_combos", "majority_S", "pure_benign", "pure_malicious", "rare_mixed"]
        }
    },
    "labels": ["benign", "malicious"]
}`

// LoadTestingConfiguration parses TestingArtifact
func LoadTestingConfiguration() (*Configuration, error) {
	return Parse([]byte(TestingArtifact))
}
