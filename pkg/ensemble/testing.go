package ensemble

// TestingArtifact is a two tree binary:logistic model over the columns of
// features.TestingArtifact. Flows whose history bucket is majority_S score as
// malicious.
const TestingArtifact = `{
    "objective": "binary:logistic",
    "base_score": 0.5,
    "feature_names": [
        "orig_pkts", "orig_ip_bytes",
        "proto_tcp", "proto_udp",
        "conn_state_OTH", "conn_state_REJ", "conn_state_RSTO", "conn_state_RSTOS0",
        "conn_state_RSTR", "conn_state_RSTRH", "conn_state_S0", "conn_state_S1",
        "conn_state_S2", "conn_state_S3", "conn_state_SF", "conn_state_SH", "conn_state_SHR",
        "history_bucket_known_suspicious_combos", "history_bucket_majority_S",
        "history_bucket_pure_benign", "history_bucket_pure_malicious", "history_bucket_rare_mixed"
    ],
    "trees": [
        {"nodeid": 0, "depth": 0, "split": "history_bucket_majority_S", "split_condition": 0.5,
         "yes": 1, "no": 2, "missing": 1,
         "children": [
            {"nodeid": 1, "leaf": -1.0},
            {"nodeid": 2, "leaf": 2.0}
         ]},
        {"nodeid": 0, "depth": 0, "split": "f0", "split_condition": 0,
         "yes": 1, "no": 2, "missing": 1,
         "children": [
            {"nodeid": 1, "leaf": -0.5},
            {"nodeid": 2, "leaf": 0.3}
         ]}
    ]
}`

// LoadTestingModel parses TestingArtifact
func LoadTestingModel() (*Model, error) {
	return Parse([]byte(TestingArtifact))
}
